package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/tensor"
)

// ErrVarNotFound is returned when a name does not resolve in a Scope.
var ErrVarNotFound = errors.New("variable not found")

// Variable is a named tensor slot. Shape is metadata that shape inference
// updates in place; Data holds host values (feeds, weights, fetched results)
// and Buffer the device storage assigned by the driver.
type Variable struct {
	Name        string
	Shape       tensor.Shape
	DType       tensor.DataType
	Persistable bool
	Data        []float32
	Buffer      gpu.Buffer
}

// ByteSize returns the device storage size of the variable.
func (v *Variable) ByteSize() uint64 {
	//nolint:gosec // G115: shape dimensions are validated positive.
	return uint64(v.Shape.ByteSize(v.DType))
}

// String formats the variable for diagnostics.
func (v *Variable) String() string {
	return fmt.Sprintf("%s%v(%s)", v.Name, []int(v.Shape), v.DType)
}

// Scope resolves variable names to storage. A Scope is not safe for
// concurrent use; a single driver owns it for the lifetime of a program.
type Scope struct {
	vars map[string]*Variable
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]*Variable)}
}

// Var returns the named variable.
func (s *Scope) Var(name string) (*Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Lookup is Var returning ErrVarNotFound for unknown names.
func (s *Scope) Lookup(name string) (*Variable, error) {
	v, ok := s.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVarNotFound, name)
	}
	return v, nil
}

// NewVar returns the named variable, creating an empty float32 one if needed.
func (s *Scope) NewVar(name string) *Variable {
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := &Variable{Name: name, DType: tensor.Float32}
	s.vars[name] = v
	return v
}

// Names returns the variable names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of variables.
func (s *Scope) Len() int {
	return len(s.vars)
}
