package graph

import "slices"

// OpDesc describes one graph node: its kind, the variables bound to each
// argument role, and its attributes. Inputs bound to persistable variables
// (weights) are kept apart in ParaInputs.
type OpDesc struct {
	Type       string
	Inputs     map[string][]string
	ParaInputs map[string][]string
	Outputs    map[string][]string
	Attrs      map[string]Attr
}

// NewOpDesc builds a description from raw role maps. Each input role is
// placed in ParaInputs when every variable it names is persistable in scope,
// and in Inputs otherwise.
func NewOpDesc(opType string, inputs, outputs map[string][]string, attrs map[string]Attr, scope *Scope) *OpDesc {
	desc := &OpDesc{
		Type:       opType,
		Inputs:     make(map[string][]string),
		ParaInputs: make(map[string][]string),
		Outputs:    CloneRoles(outputs),
		Attrs:      CloneAttrs(attrs),
	}

	for role, names := range inputs {
		if allPersistable(scope, names) {
			desc.ParaInputs[role] = slices.Clone(names)
		} else {
			desc.Inputs[role] = slices.Clone(names)
		}
	}
	return desc
}

// Arg returns the first variable name bound to role in Inputs, ParaInputs or
// Outputs, searched in that order.
func (d *OpDesc) Arg(role string) (string, bool) {
	for _, m := range []map[string][]string{d.Inputs, d.ParaInputs, d.Outputs} {
		if names, ok := m[role]; ok && len(names) > 0 {
			return names[0], true
		}
	}
	return "", false
}

// HasInput reports whether role is bound in Inputs or ParaInputs.
func (d *OpDesc) HasInput(role string) bool {
	if names, ok := d.Inputs[role]; ok && len(names) > 0 {
		return true
	}
	names, ok := d.ParaInputs[role]
	return ok && len(names) > 0
}

// HasOutput reports whether role is bound in Outputs.
func (d *OpDesc) HasOutput(role string) bool {
	names, ok := d.Outputs[role]
	return ok && len(names) > 0
}

func allPersistable(scope *Scope, names []string) bool {
	if scope == nil || len(names) == 0 {
		return false
	}
	for _, name := range names {
		v, ok := scope.Var(name)
		if !ok || !v.Persistable {
			return false
		}
	}
	return true
}

// CloneRoles returns a deep copy of a role map.
func CloneRoles(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for role, names := range m {
		out[role] = slices.Clone(names)
	}
	return out
}

// CloneAttrs returns a deep copy of an attribute map.
func CloneAttrs(m map[string]Attr) map[string]Attr {
	out := make(map[string]Attr, len(m))
	for name, a := range m {
		a.Ints = slices.Clone(a.Ints)
		a.Floats = slices.Clone(a.Floats)
		a.Strings = slices.Clone(a.Strings)
		out[name] = a
	}
	return out
}
