package operators

import (
	"fmt"
	"strings"

	"github.com/born-ml/gpuops/internal/graph"
)

func bindVar(desc *graph.OpDesc, scope *graph.Scope, role string, roles ...map[string][]string) (*graph.Variable, error) {
	if scope == nil {
		return nil, configErr(desc.Type, role, "no scope to resolve variables")
	}
	for _, m := range roles {
		names := m[role]
		if len(names) == 0 {
			continue
		}
		v, ok := scope.Var(names[0])
		if !ok {
			return nil, configErr(desc.Type, role, fmt.Sprintf("variable %q not in scope", names[0]))
		}
		return v, nil
	}
	return nil, configErr(desc.Type, role, "not bound")
}

// inputVar resolves an input role, persistable or not.
func inputVar(desc *graph.OpDesc, scope *graph.Scope, role string) (*graph.Variable, error) {
	return bindVar(desc, scope, role, desc.Inputs, desc.ParaInputs)
}

// paraVar resolves a persistable input role.
func paraVar(desc *graph.OpDesc, scope *graph.Scope, role string) (*graph.Variable, error) {
	return bindVar(desc, scope, role, desc.ParaInputs)
}

func outputVar(desc *graph.OpDesc, scope *graph.Scope, role string) (*graph.Variable, error) {
	return bindVar(desc, scope, role, desc.Outputs)
}

func attr(desc *graph.OpDesc, name string) (graph.Attr, error) {
	a, ok := desc.Attrs[name]
	if !ok {
		return graph.Attr{}, configErr(desc.Type, name, "attribute missing")
	}
	return a, nil
}

func wrongKind(desc *graph.OpDesc, name string, a graph.Attr, want string) error {
	return configErr(desc.Type, name, fmt.Sprintf("attribute is %s, want %s", a.Kind, want))
}

func attrInt(desc *graph.OpDesc, name string) (int, error) {
	a, err := attr(desc, name)
	if err != nil {
		return 0, err
	}
	v, ok := a.Int()
	if !ok {
		return 0, wrongKind(desc, name, a, "int")
	}
	return v, nil
}

func attrFloat(desc *graph.OpDesc, name string) (float32, error) {
	a, err := attr(desc, name)
	if err != nil {
		return 0, err
	}
	v, ok := a.Float()
	if !ok {
		return 0, wrongKind(desc, name, a, "float")
	}
	return v, nil
}

// attrPair reads an int list of exactly two values, such as strides.
func attrPair(desc *graph.OpDesc, name string) ([2]int, error) {
	a, err := attr(desc, name)
	if err != nil {
		return [2]int{}, err
	}
	v, ok := a.IntList()
	if !ok {
		return [2]int{}, wrongKind(desc, name, a, "ints")
	}
	if len(v) != 2 {
		return [2]int{}, configErr(desc.Type, name, fmt.Sprintf("want 2 values, got %d", len(v)))
	}
	return [2]int{v[0], v[1]}, nil
}

// attrFloatOr reads an optional float attribute. A present attribute of the
// wrong kind is still an error.
func attrFloatOr(desc *graph.OpDesc, name string, def float32) (float32, error) {
	if _, ok := desc.Attrs[name]; !ok {
		return def, nil
	}
	return attrFloat(desc, name)
}

func attrBoolOr(desc *graph.OpDesc, name string, def bool) (bool, error) {
	a, ok := desc.Attrs[name]
	if !ok {
		return def, nil
	}
	v, ok := a.Bool()
	if !ok {
		return false, wrongKind(desc, name, a, "bool")
	}
	return v, nil
}

// describeVars formats variables for OutputDesc.
func describeVars(vars ...*graph.Variable) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
