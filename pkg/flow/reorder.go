package flow

import (
	"fmt"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
)

// Realized is a descriptor together with its bytes.
type Realized struct {
	Desc chunk.Descriptor
	Data []byte
}

// Reorder restores ascending order for chunks whose reads complete out of order.
type Reorder struct {
	order []chunk.Descriptor
	data  map[int64][]byte
}

// NewReorder creates an empty reorder buffer.
func NewReorder() *Reorder {
	return &Reorder{data: make(map[int64][]byte)}
}

// Expect registers released descriptors in dispatch order.
func (r *Reorder) Expect(descs ...chunk.Descriptor) {
	r.order = append(r.order, descs...)
}

// Outstanding returns the number of expected chunks not yet handed out by Ready.
func (r *Reorder) Outstanding() int { return len(r.order) }

// Fill stores the bytes read for desc.
func (r *Reorder) Fill(desc chunk.Descriptor, data []byte) error {
	for _, d := range r.order {
		if d.Start == desc.Start {
			r.data[desc.Start] = data

			return nil
		}
	}

	return fmt.Errorf("reorder: unexpected chunk %s", desc)
}

// Ready removes and returns the longest in-order prefix whose bytes are available.
func (r *Reorder) Ready() []Realized {
	var out []Realized

	for len(r.order) > 0 {
		head := r.order[0]

		data, ok := r.data[head.Start]
		if !ok {
			break
		}

		delete(r.data, head.Start)

		r.order = r.order[1:]
		out = append(out, Realized{Desc: head, Data: data})
	}

	return out
}
