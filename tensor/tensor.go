// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/gpuops/internal/tensor"
)

// Type aliases for public API

// DataType represents the element type of a variable.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// AxisBroadcast describes an operand repeated around a run of dimensions.
type AxisBroadcast = tensor.AxisBroadcast

// ParseDataType parses a data type name such as "float32" or "fp16".
func ParseDataType(name string) (DataType, error) {
	return tensor.ParseDataType(name)
}

// BroadcastAtAxis aligns y with the dimensions of x starting at axis.
// Axis -1 aligns y with the trailing dimensions.
func BroadcastAtAxis(x, y Shape, axis int) (AxisBroadcast, error) {
	return tensor.BroadcastAtAxis(x, y, axis)
}

// EncodeFloat32 encodes values as little-endian float32.
func EncodeFloat32(values []float32) []byte {
	return tensor.EncodeFloat32(values)
}

// EncodeFloat16 encodes values as little-endian IEEE half precision.
func EncodeFloat16(values []float32) []byte {
	return tensor.EncodeFloat16(values)
}

// DecodeFloats decodes little-endian float32 or float16 data.
func DecodeFloats(raw []byte, dt DataType) ([]float32, error) {
	return tensor.DecodeFloats(raw, dt)
}
