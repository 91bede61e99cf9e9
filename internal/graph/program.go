package graph

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/gpuops/internal/tensor"
)

// Program is a deserialized inference graph: variable declarations and the
// operator list in execution order.
type Program struct {
	Name string     `yaml:"name"`
	Vars []VarDesc  `yaml:"vars"`
	Ops  []NodeDesc `yaml:"ops"`
}

// VarDesc declares a variable. Persistable variables carry their values either
// as a float list in Data or as little-endian bytes in Raw, encoded as Encoding.
type VarDesc struct {
	Name        string    `yaml:"name"`
	Shape       []int     `yaml:"shape"`
	DType       string    `yaml:"dtype"`
	Persistable bool      `yaml:"persistable"`
	Data        []float32 `yaml:"data"`
	Raw         string    `yaml:"raw"`
	Encoding    string    `yaml:"encoding"`
}

// NodeDesc is the serialized form of an OpDesc, before inputs are split by
// persistability.
type NodeDesc struct {
	Type    string              `yaml:"type"`
	Inputs  map[string][]string `yaml:"inputs"`
	Outputs map[string][]string `yaml:"outputs"`
	Attrs   map[string]Attr     `yaml:"attrs"`
}

// Parse decodes a YAML program.
func Parse(data []byte) (*Program, error) {
	var prog Program
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return nil, errors.Wrap(err, "graph: decoding program")
	}
	for i, op := range prog.Ops {
		if op.Type == "" {
			return nil, errors.Errorf("graph: op #%d has no type", i)
		}
	}
	return &prog, nil
}

// LoadFile reads and decodes a YAML program from path.
func LoadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: reading %q: %w", path, err)
	}
	return Parse(data)
}

// NewScope creates a scope holding every declared variable with its shape,
// type and decoded values.
func (p *Program) NewScope() (*Scope, error) {
	scope := NewScope()
	for _, vd := range p.Vars {
		if vd.Name == "" {
			return nil, errors.New("graph: variable without a name")
		}
		if _, dup := scope.Var(vd.Name); dup {
			return nil, errors.Errorf("graph: variable %q declared twice", vd.Name)
		}
		dt, err := tensor.ParseDataType(vd.DType)
		if err != nil {
			return nil, errors.Wrapf(err, "graph: variable %q", vd.Name)
		}
		v := scope.NewVar(vd.Name)
		v.Shape = tensor.Shape(vd.Shape).Clone()
		v.DType = dt
		v.Persistable = vd.Persistable

		data, err := vd.values()
		if err != nil {
			return nil, errors.Wrapf(err, "graph: variable %q", vd.Name)
		}
		if data != nil && len(v.Shape) > 0 && len(data) != v.Shape.NumElements() {
			return nil, errors.Errorf("graph: variable %q has %d values for shape %v",
				vd.Name, len(data), vd.Shape)
		}
		v.Data = data
	}
	return scope, nil
}

// OpDescs converts the op list into descriptions bound against scope.
// Variables referenced by an op but not declared are created empty.
func (p *Program) OpDescs(scope *Scope) []*OpDesc {
	descs := make([]*OpDesc, 0, len(p.Ops))
	for _, op := range p.Ops {
		for _, m := range []map[string][]string{op.Inputs, op.Outputs} {
			for _, names := range m {
				for _, name := range names {
					scope.NewVar(name)
				}
			}
		}
		descs = append(descs, NewOpDesc(op.Type, op.Inputs, op.Outputs, op.Attrs, scope))
	}
	return descs
}

func (vd *VarDesc) values() ([]float32, error) {
	if vd.Raw == "" {
		return vd.Data, nil
	}
	if vd.Data != nil {
		return nil, errors.New("both data and raw are set")
	}
	raw, err := base64.StdEncoding.DecodeString(vd.Raw)
	if err != nil {
		return nil, errors.Wrap(err, "decoding raw")
	}
	enc, err := tensor.ParseDataType(vd.Encoding)
	if err != nil {
		return nil, err
	}
	return tensor.DecodeFloats(raw, enc)
}

// UnmarshalYAML infers the attribute kind from the YAML node: scalars by their
// resolved tag, sequences by their elements (any float makes a float list).
func (a *Attr) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return a.decodeScalar(node)
	case yaml.SequenceNode:
		return a.decodeSequence(node)
	default:
		return errors.Errorf("line %d: attribute must be a scalar or a list", node.Line)
	}
}

func (a *Attr) decodeScalar(node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!int":
		a.Kind = AttrInt
		return node.Decode(&a.I)
	case "!!float":
		a.Kind = AttrFloat
		return node.Decode(&a.F)
	case "!!bool":
		a.Kind = AttrBool
		return node.Decode(&a.B)
	case "!!str":
		a.Kind = AttrString
		a.S = node.Value
		return nil
	default:
		return errors.Errorf("line %d: unsupported attribute tag %s", node.Line, node.ShortTag())
	}
}

func (a *Attr) decodeSequence(node *yaml.Node) error {
	var ints, floats, strs int
	for _, item := range node.Content {
		switch item.ShortTag() {
		case "!!int":
			ints++
		case "!!float":
			floats++
		case "!!str":
			strs++
		default:
			return errors.Errorf("line %d: unsupported list element tag %s", item.Line, item.ShortTag())
		}
	}

	switch {
	case strs > 0 && ints+floats > 0:
		return errors.Errorf("line %d: attribute list mixes strings and numbers", node.Line)
	case strs > 0:
		a.Kind = AttrStrings
		return node.Decode(&a.Strings)
	case floats > 0:
		a.Kind = AttrFloats
		return node.Decode(&a.Floats)
	default:
		a.Kind = AttrInts
		return node.Decode(&a.Ints)
	}
}
