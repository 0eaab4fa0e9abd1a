package native

import "github.com/hupe1980/knnbridge/internal/queue"

const (
	// filterOversample is the initial fetch multiplier for filtered searches.
	filterOversample = 4
	// resultPrealloc caps the capacity reserved up front for k results.
	resultPrealloc = 1024
)

// KNNQuery is a k-nearest-neighbor request against a Space.
type KNNQuery struct {
	space  *Space
	query  *Object
	k      int
	filter func(id int64) bool
	result *queue.PriorityQueue
}

// NewKNNQuery creates a query for the k nearest neighbors of query.
func NewKNNQuery(space *Space, k int, query *Object) *KNNQuery {
	calls.Add(1)
	return &KNNQuery{
		space:  space,
		query:  query,
		k:      k,
		result: queue.NewMax(min(k, resultPrealloc)),
	}
}

// SetFilter restricts results to ids accepted by allow.
func (q *KNNQuery) SetFilter(allow func(id int64) bool) {
	q.filter = allow
}

func (q *KNNQuery) push(id int64, dist float32) {
	q.result.PushBounded(queue.PriorityQueueItem{ID: id, Distance: dist}, q.k)
}

// Result returns a copy of the result queue ordered nearest first.
func (q *KNNQuery) Result() *KNNQueue {
	out := queue.NewMin(q.result.Len())
	for _, item := range q.result.Items() {
		out.PushItem(item)
	}
	return &KNNQueue{pq: out}
}

// KNNQueue yields results nearest first.
type KNNQueue struct {
	pq *queue.PriorityQueue
}

// Size returns the number of remaining results.
func (r *KNNQueue) Size() int {
	return r.pq.Len()
}

// Empty reports whether all results have been popped.
func (r *KNNQueue) Empty() bool {
	return r.pq.Len() == 0
}

// TopDistance returns the distance of the nearest remaining result.
func (r *KNNQueue) TopDistance() float32 {
	item, _ := r.pq.TopItem()
	return item.Distance
}

// Pop removes the nearest remaining result and returns its id.
func (r *KNNQueue) Pop() int64 {
	item, _ := r.pq.PopItem()
	return item.ID
}
