// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package operators_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/gpuops/operators"
)

func TestRegistryCoversOpInfos(t *testing.T) {
	reg := operators.NewRegistry()
	infos := operators.OpInfos()
	assert.Len(t, reg.SupportedOps(), len(infos))
	for kind, info := range infos {
		got, ok := reg.Info(kind)
		assert.True(t, ok, kind)
		assert.Equal(t, info, got)
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &operators.ConfigurationError{Op: operators.ReluType, Field: "X", Reason: "not bound"}
	assert.True(t, errors.Is(err, operators.ErrConfiguration))
	assert.Equal(t, "relu: X: not bound", err.Error())

	cause := errors.New("device lost")
	err = &operators.ExecutionError{Op: operators.Conv2DType, Err: cause}
	assert.True(t, errors.Is(err, operators.ErrExecution))
	assert.True(t, errors.Is(err, cause))
}
