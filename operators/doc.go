// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package operators provides the public API for GPU operator dispatch.
//
// An operator binds one graph node (a kind, its argument roles and its
// attributes) to a parameter block and a kernel for a device. The registry
// maps every supported kind to its argument roles and its creator:
//
//	reg := operators.NewRegistry()
//	op, err := reg.Create(device, desc, scope)
//	if errors.Is(err, operators.ErrConfiguration) {
//	    // the node is missing a role or attribute
//	}
//	err = op.Run(device, cmd)
//
// Supported kinds: conv2d, batch_norm, relu, elementwise_add, feed, fetch.
package operators
