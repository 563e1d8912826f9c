package compiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/keystone/internal/ir"
	"github.com/roach88/keystone/internal/module"
)

// LoadParameters reads a YAML parameters file. An empty path yields no
// parameters.
func LoadParameters(path string) (module.Parameters, error) {
	if path == "" {
		return module.Parameters{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	params, err := ParseParameters(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return params, nil
}

// ParseParameters decodes YAML of the form
//
//	Market:
//	  owner: "0x61DD..."
//	  fee: 250
func ParseParameters(data []byte) (module.Parameters, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse parameters: %w", err)
	}

	params := make(module.Parameters, len(raw))
	for mod, values := range raw {
		params[mod] = make(map[string]ir.IRValue, len(values))
		for name, v := range values {
			iv, err := ir.FromAny(normalizeYAML(v))
			if err != nil {
				return nil, fmt.Errorf("parameter %s.%s: %w", mod, name, err)
			}
			params[mod][name] = iv
		}
	}
	return params, nil
}

// normalizeYAML rewrites mappings with non-string keys, which yaml.v3
// decodes as map[any]any, into the string-keyed maps FromAny accepts.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeYAML(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return v
	}
}
