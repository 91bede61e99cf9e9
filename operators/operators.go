// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package operators

import (
	"github.com/born-ml/gpuops/internal/operators"
)

// Operator kinds.
const (
	FetchType          = operators.FetchType
	FeedType           = operators.FeedType
	Conv2DType         = operators.Conv2DType
	BatchNormType      = operators.BatchNormType
	ReluType           = operators.ReluType
	ElementwiseAddType = operators.ElementwiseAddType
)

// Runnable is the kind-independent view of a constructed operator.
type Runnable = operators.Runnable

// OpInfo lists the argument roles an operator kind expects.
type OpInfo = operators.OpInfo

// OpInfos returns a copy of the argument-role table of the built-in kinds.
// Registry.Info also covers kinds added with Register.
func OpInfos() map[string]OpInfo {
	return operators.OpInfos()
}

// Creator builds an operator from a graph description.
type Creator = operators.Creator

// Registry maps operator kinds to their argument roles and creators.
type Registry = operators.Registry

// NewRegistry creates a registry with all built-in kinds.
func NewRegistry() *Registry {
	return operators.NewRegistry()
}

// Errors.
var (
	ErrConfiguration = operators.ErrConfiguration
	ErrExecution     = operators.ErrExecution
	ErrUnsupportedOp = operators.ErrUnsupportedOp
)

// ConfigurationError reports a graph node that cannot be bound to an operator.
type ConfigurationError = operators.ConfigurationError

// ExecutionError reports a kernel failure while encoding device work.
type ExecutionError = operators.ExecutionError
