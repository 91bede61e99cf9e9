package graph

import "fmt"

// AttrKind tags the value held by an Attr.
type AttrKind int

// Attribute kinds.
const (
	AttrInt AttrKind = iota
	AttrFloat
	AttrString
	AttrBool
	AttrInts
	AttrFloats
	AttrStrings
	AttrLong
)

// String returns a human-readable name for the attribute kind.
func (k AttrKind) String() string {
	switch k {
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrString:
		return "string"
	case AttrBool:
		return "bool"
	case AttrInts:
		return "ints"
	case AttrFloats:
		return "floats"
	case AttrStrings:
		return "strings"
	case AttrLong:
		return "long"
	default:
		return fmt.Sprintf("attr(%d)", int(k))
	}
}

// Attr is a tagged attribute value. Only the field matching Kind is meaningful.
type Attr struct {
	Kind    AttrKind
	I       int64
	F       float32
	S       string
	B       bool
	Ints    []int64
	Floats  []float32
	Strings []string
}

// IntAttr returns an int attribute.
func IntAttr(v int) Attr { return Attr{Kind: AttrInt, I: int64(v)} }

// FloatAttr returns a float attribute.
func FloatAttr(v float32) Attr { return Attr{Kind: AttrFloat, F: v} }

// StringAttr returns a string attribute.
func StringAttr(v string) Attr { return Attr{Kind: AttrString, S: v} }

// BoolAttr returns a bool attribute.
func BoolAttr(v bool) Attr { return Attr{Kind: AttrBool, B: v} }

// IntsAttr returns an int list attribute.
func IntsAttr(v ...int) Attr {
	ints := make([]int64, len(v))
	for i, x := range v {
		ints[i] = int64(x)
	}
	return Attr{Kind: AttrInts, Ints: ints}
}

// FloatsAttr returns a float list attribute.
func FloatsAttr(v ...float32) Attr { return Attr{Kind: AttrFloats, Floats: v} }

// Int returns the value of an int or long attribute.
func (a Attr) Int() (int, bool) {
	if a.Kind != AttrInt && a.Kind != AttrLong {
		return 0, false
	}
	return int(a.I), true
}

// Float returns the value of a float attribute. Int attributes are widened.
func (a Attr) Float() (float32, bool) {
	switch a.Kind {
	case AttrFloat:
		return a.F, true
	case AttrInt, AttrLong:
		return float32(a.I), true
	default:
		return 0, false
	}
}

// Bool returns the value of a bool attribute.
func (a Attr) Bool() (bool, bool) {
	if a.Kind != AttrBool {
		return false, false
	}
	return a.B, true
}

// Str returns the value of a string attribute.
func (a Attr) Str() (string, bool) {
	if a.Kind != AttrString {
		return "", false
	}
	return a.S, true
}

// IntList returns the value of an int list attribute.
func (a Attr) IntList() ([]int, bool) {
	if a.Kind != AttrInts {
		return nil, false
	}
	out := make([]int, len(a.Ints))
	for i, v := range a.Ints {
		out[i] = int(v)
	}
	return out, true
}

// FloatList returns the value of a float list attribute.
func (a Attr) FloatList() ([]float32, bool) {
	if a.Kind != AttrFloats {
		return nil, false
	}
	return a.Floats, true
}

// String formats the attribute value.
func (a Attr) String() string {
	switch a.Kind {
	case AttrInt, AttrLong:
		return fmt.Sprint(a.I)
	case AttrFloat:
		return fmt.Sprint(a.F)
	case AttrString:
		return fmt.Sprintf("%q", a.S)
	case AttrBool:
		return fmt.Sprint(a.B)
	case AttrInts:
		return fmt.Sprint(a.Ints)
	case AttrFloats:
		return fmt.Sprint(a.Floats)
	case AttrStrings:
		return fmt.Sprint(a.Strings)
	default:
		return a.Kind.String()
	}
}
