package transform

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Step is the catalog form of a transform. In YAML it is either a bare name
// ("rot13") or a mapping with arguments ({name: shift, offset: -3}).
type Step struct {
	Name   string            `yaml:"name"`
	Tokens []string          `yaml:"tokens,omitempty"`
	Offset int               `yaml:"offset,omitempty"`
	Table  map[string]string `yaml:"table,omitempty"`
}

// UnmarshalYAML accepts the scalar shorthand
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Name = value.Value
		return nil
	}
	type plain Step
	return value.Decode((*plain)(s))
}

// New builds the transform a step names
func New(step Step) (Transform, error) {
	switch step.Name {
	case NameReverse:
		return Reverse(), nil
	case NameROT13:
		return ROT13(), nil
	case NameBase64:
		return Base64(), nil
	case NameStrip:
		return Strip(step.Tokens...), nil
	case NameShift:
		return Shift(step.Offset), nil
	case NameHexPairs:
		return HexPairs(step.Table), nil
	case NameSubstitute:
		if len(step.Table) == 0 {
			return Transform{}, errors.New("substitute needs a table")
		}
		return Substitute(step.Table), nil
	case NameURLDecode:
		return URLDecode(), nil
	default:
		return Transform{}, errors.Errorf("unknown transform %q", step.Name)
	}
}

// Build turns a list of steps into a Chain
func Build(steps []Step) (Chain, error) {
	chain := make(Chain, 0, len(steps))
	for i, step := range steps {
		t, err := New(step)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		chain = append(chain, t)
	}
	return chain, nil
}
