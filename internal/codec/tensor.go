package codec

import (
	"fmt"
)

// Tensor is the host's image buffer: a row-major float32 array with values in
// [0,1]. Images are [B,H,W,C] (or [H,W,C] / [C,H,W] for single images), masks
// are [B,H,W] or [H,W].
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

func NewTensor(shape ...int) *Tensor {
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, volume(shape)),
	}
}

func volume(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t *Tensor) Dims() int {
	return len(t.Shape)
}

// Validate checks that the shape is non-degenerate and matches the data length.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrUnsupportedLayout)
	}
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: shape %v", ErrUnsupportedLayout, t.Shape)
		}
	}
	if len(t.Shape) == 0 || volume(t.Shape) != len(t.Data) {
		return fmt.Errorf("%w: shape %v does not match %d values", ErrUnsupportedLayout, t.Shape, len(t.Data))
	}
	return nil
}

// BatchSize is the leading dimension of a 4-D tensor and 1 otherwise.
func (t *Tensor) BatchSize() int {
	if t.Dims() == 4 {
		return t.Shape[0]
	}
	return 1
}

// Index returns element i of the leading axis. The result shares t's data.
func (t *Tensor) Index(i int) *Tensor {
	inner := t.Shape[1:]
	n := volume(inner)
	return &Tensor{
		Shape: append([]int(nil), inner...),
		Data:  t.Data[i*n : (i+1)*n],
	}
}

// Elements splits a 4-D batch into its images; a 3-D tensor is its own
// single element.
func (t *Tensor) Elements() []*Tensor {
	if t.Dims() != 4 {
		return []*Tensor{t}
	}
	out := make([]*Tensor, t.Shape[0])
	for i := range out {
		out[i] = t.Index(i)
	}
	return out
}

// Stack joins [1,H,W,C] frames of identical size into one [N,H,W,C] batch.
func Stack(frames []*Tensor) (*Tensor, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrUnsupportedLayout)
	}
	first := frames[0]
	if first.Dims() != 4 || first.Shape[0] != 1 {
		return nil, fmt.Errorf("%w: frame shape %v", ErrUnsupportedLayout, first.Shape)
	}
	out := NewTensor(len(frames), first.Shape[1], first.Shape[2], first.Shape[3])
	n := len(first.Data)
	for i, f := range frames {
		if f.Dims() != 4 || f.Shape[0] != 1 || f.Shape[1] != first.Shape[1] || f.Shape[2] != first.Shape[2] || f.Shape[3] != first.Shape[3] {
			return nil, fmt.Errorf("%w: frame %d has shape %v, want %v", ErrUnsupportedLayout, i, f.Shape, first.Shape)
		}
		copy(out.Data[i*n:(i+1)*n], f.Data)
	}
	return out, nil
}

// Blank is a black [1,H,W,3] frame.
func Blank(h, w int) *Tensor {
	return NewTensor(1, h, w, 3)
}
