// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor metadata types used by graph
// programs: shapes, element types, and the little-endian encodings used for
// weights and fetched results.
//
// # Basic Usage
//
//	shape := tensor.Shape{1, 3, 224, 224}
//	size := shape.ByteSize(tensor.Float32) // bytes of device storage
//
//	raw := tensor.EncodeFloat16(weights)
//	values, err := tensor.DecodeFloats(raw, tensor.Float16)
//
// # Broadcasting
//
// BroadcastAtAxis describes how a smaller operand spans a contiguous run of
// dimensions of a larger one, as elementwise operators with an axis
// attribute expect:
//
//	bc, err := tensor.BroadcastAtAxis(tensor.Shape{1, 4, 2, 2}, tensor.Shape{4}, 1)
//	// bc.Pre == 1, bc.N == 4, bc.Post == 4
package tensor
