package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ByteSize returns the storage size of a tensor of this shape and data type.
func (s Shape) ByteSize(dt DataType) int {
	return s.NumElements() * dt.Size()
}

// AxisBroadcast describes how a lower-rank operand y is laid over x starting at
// a given axis. x is viewed as [Pre, N, Post] where N is the element count of y.
type AxisBroadcast struct {
	Axis int
	Pre  int
	N    int
	Post int
}

// BroadcastAtAxis matches y against the dimensions of x beginning at axis.
// An axis of -1 aligns y with the trailing dimensions of x.
//
// Examples:
//
//	x (2, 3, 4, 5), y (3, 4), axis 1  → Pre 2, N 12, Post 5
//	x (2, 3, 4, 5), y (4, 5), axis -1 → Pre 6, N 20, Post 1
//	x (2, 3), y (2, 3), axis -1       → Pre 1, N 6, Post 1
func BroadcastAtAxis(x, y Shape, axis int) (AxisBroadcast, error) {
	if len(y) > len(x) {
		return AxisBroadcast{}, fmt.Errorf("rank of y %v exceeds rank of x %v", y, x)
	}
	if axis == -1 {
		axis = len(x) - len(y)
	}
	if axis < 0 || axis+len(y) > len(x) {
		return AxisBroadcast{}, fmt.Errorf("axis %d out of range for x %v and y %v", axis, x, y)
	}

	b := AxisBroadcast{Axis: axis, Pre: 1, N: 1, Post: 1}
	for i := 0; i < axis; i++ {
		b.Pre *= x[i]
	}
	for i, dim := range y {
		if x[axis+i] != dim {
			return AxisBroadcast{}, fmt.Errorf("dimension %d of y %v does not match dimension %d of x %v",
				i, y, axis+i, x)
		}
		b.N *= dim
	}
	for i := axis + len(y); i < len(x); i++ {
		b.Post *= x[i]
	}
	return b, nil
}
