package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
)

// Shape is a tensor shape, outermost dimension first.
type Shape []int

// Size returns the number of elements, or 0 if any dimension is not
// positive.
func (s Shape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// Valid reports whether the shape has at least one dimension and all
// dimensions are positive.
func (s Shape) Valid() bool {
	return s.Size() > 0
}

// Equal reports whether two shapes are identical.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// Int64 returns the shape as int64 dimensions.
func (s Shape) Int64() []int64 {
	out := make([]int64, len(s))
	for i, d := range s {
		out[i] = int64(d)
	}
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Tensor is model input produced from one recording. Accessors return
// copies; a Tensor cannot be modified after construction.
type Tensor struct {
	shape  Shape
	data   []float32
	source *pcm.Recording
}

// NewTensor validates len(data) against shape and copies both. source is
// the recording the tensor was computed from and may be nil.
func NewTensor(shape Shape, data []float32, source *pcm.Recording) (*Tensor, error) {
	if !shape.Valid() {
		return nil, Errorf(ShapeMismatch, "tensor", "invalid shape %v", shape)
	}
	if len(data) != shape.Size() {
		return nil, Errorf(ShapeMismatch, "tensor", "%d values do not fill shape %v", len(data), shape)
	}
	d := make([]float32, len(data))
	copy(d, data)
	return &Tensor{shape: shape.Clone(), data: d, source: source}, nil
}

// Shape returns the tensor shape.
func (t *Tensor) Shape() Shape { return t.shape.Clone() }

// Data returns a copy of the values in row-major order.
func (t *Tensor) Data() []float32 {
	d := make([]float32, len(t.data))
	copy(d, t.data)
	return d
}

// Len returns the number of values.
func (t *Tensor) Len() int { return len(t.data) }

// Source returns the recording the tensor was derived from.
func (t *Tensor) Source() *pcm.Recording { return t.source }

// CheckShape returns ShapeMismatch unless t has exactly the given shape.
func CheckShape(op string, t *Tensor, want Shape) error {
	if t == nil {
		return Errorf(ShapeMismatch, op, "nil tensor")
	}
	if !t.shape.Equal(want) {
		return Errorf(ShapeMismatch, op, "tensor shape %v, backend expects %v", t.shape, want)
	}
	return nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("classify.Tensor%v", t.shape)
}
