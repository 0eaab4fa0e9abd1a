package native

import (
	"encoding/binary"
	"unsafe"
)

// Packed record layout. All fields use host byte order.
const (
	IDSize         = 8
	LabelSize      = 4
	DataLengthSize = 4
	HeaderSize     = IDSize + LabelSize + DataLengthSize

	// NoLabel is the label sentinel written for every record.
	NoLabel int32 = -1

	float32Size = 4
)

// RecordSize returns the packed size of one record with dim components.
func RecordSize(dim int) int {
	return HeaderSize + dim*float32Size
}

// WriteRecord encodes one record into rec, which must be exactly
// RecordSize(len(vec)) bytes.
func WriteRecord(rec []byte, id int64, vec []float32) {
	label := NoLabel
	binary.NativeEndian.PutUint64(rec[0:], uint64(id))
	binary.NativeEndian.PutUint32(rec[IDSize:], uint32(label))
	binary.NativeEndian.PutUint32(rec[IDSize+LabelSize:], uint32(len(vec)*float32Size))

	if len(vec) > 0 {
		copy(unsafe.Slice((*float32)(unsafe.Pointer(&rec[HeaderSize])), len(vec)), vec)
	}
}

// Object is a view over one packed record.
//
// Objects created with NewObject never own their bytes: the record stays in
// the caller's buffer, which must outlive the object and every index built
// from it.
type Object struct {
	rec []byte
}

// NewObject wraps a packed record without copying it.
func NewObject(rec []byte) *Object {
	calls.Add(1)
	return &Object{rec: rec}
}

// NewQueryObject creates an object that owns a copy of vec. Query objects
// carry id -1 and the NoLabel sentinel.
func NewQueryObject(vec []float32) *Object {
	calls.Add(1)
	rec := make([]byte, RecordSize(len(vec)))
	WriteRecord(rec, -1, vec)
	return &Object{rec: rec}
}

// ID returns the record id.
func (o *Object) ID() int64 {
	return int64(binary.NativeEndian.Uint64(o.rec[0:]))
}

// Label returns the record label.
func (o *Object) Label() int32 {
	return int32(binary.NativeEndian.Uint32(o.rec[IDSize:]))
}

// DataLength returns the payload length in bytes.
func (o *Object) DataLength() int {
	return int(binary.NativeEndian.Uint32(o.rec[IDSize+LabelSize:]))
}

// Dim returns the number of float32 components in the payload.
func (o *Object) Dim() int {
	return o.DataLength() / float32Size
}

// Vector returns the payload as a float32 slice aliasing the record.
func (o *Object) Vector() []float32 {
	dim := o.Dim()
	if dim == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&o.rec[HeaderSize])), dim)
}

// Released reports whether Release has been called.
func (o *Object) Released() bool {
	return o.rec == nil
}

// Release drops the view. It does not free the underlying record.
func (o *Object) Release() {
	o.rec = nil
}

// ReleaseObjects releases every object in objs.
func ReleaseObjects(objs []*Object) {
	for _, o := range objs {
		if o != nil {
			o.Release()
		}
	}
}
