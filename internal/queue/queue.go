// Package queue provides the distance-ordered priority queues used to rank
// native search results.
package queue

// PriorityQueueItem represents an item in the priority queue.
type PriorityQueueItem struct {
	ID       int64   // ID is the external identifier of the point.
	Distance float32 // Distance is the priority of the item in the queue.
}

// PriorityQueue is a value-based binary heap of PriorityQueueItems.
// Equal distances are ordered by ID so ranking is deterministic.
type PriorityQueue struct {
	isMaxHeap bool
	items     []PriorityQueueItem
}

// NewMin initializes a new priority queue with minimum priority.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: false,
		items:     make([]PriorityQueueItem, 0, capacity),
	}
}

// NewMax initializes a new priority queue with maximum priority.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: true,
		items:     make([]PriorityQueueItem, 0, capacity),
	}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (PriorityQueueItem, bool) {
	if len(pq.items) == 0 {
		return PriorityQueueItem{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item PriorityQueueItem) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PopItem removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) PopItem() (PriorityQueueItem, bool) {
	n := len(pq.items)
	if n == 0 {
		return PriorityQueueItem{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = PriorityQueueItem{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// PushBounded keeps at most limit items in a max-heap, evicting the current
// farthest item when a nearer one arrives. It reports whether item was kept.
func (pq *PriorityQueue) PushBounded(item PriorityQueueItem, limit int) bool {
	if limit <= 0 {
		return false
	}
	if len(pq.items) < limit {
		pq.PushItem(item)
		return true
	}
	top := pq.items[0]
	if !pq.isMaxHeap || !before(item, top) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// Items returns the backing slice in heap order.
// The slice is only valid until the next mutation.
func (pq *PriorityQueue) Items() []PriorityQueueItem {
	return pq.items
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// before reports whether a ranks nearer than b.
func before(a, b PriorityQueueItem) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return before(pq.items[j], pq.items[i])
	}
	return before(pq.items[i], pq.items[j])
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
