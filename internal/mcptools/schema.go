package mcptools

import (
	"fmt"

	"github.com/quaero-labs/corequaero/internal/model"
)

// ParamType is the recognized argument type for schema validation — the
// subset spec.md §6.2's tool catalog actually consumes, not a general
// JSON-schema implementation (that codec is explicitly out of scope).
type ParamType string

const (
	ParamString      ParamType = "string"
	ParamNumber      ParamType = "number"
	ParamBool        ParamType = "bool"
	ParamStringArray ParamType = "string_array"
	ParamObject      ParamType = "object"
)

// ParamSpec declares one recognized tool argument: its type, whether it's
// required, and optional numeric bounds or an enum of accepted values.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Min, Max float64
	HasBound bool
	Enum     []string
}

// Schema is the full set of recognized parameters for one tool. Validate
// rejects both missing required fields and any field not declared here —
// spec.md §6.2's "unknown parameters MUST be rejected."
type Schema struct {
	Params []ParamSpec
}

// Validate checks args against the schema, returning a *model.Error of
// KindInvalidArgument/KindUnknownField/KindOutOfRange on the first problem.
func (s Schema) Validate(args map[string]any) error {
	declared := make(map[string]ParamSpec, len(s.Params))
	for _, p := range s.Params {
		declared[p.Name] = p
	}
	for name := range args {
		if _, ok := declared[name]; !ok {
			return model.New(model.KindUnknownField, "unrecognized argument %q", name)
		}
	}
	for _, p := range s.Params {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return model.New(model.KindInvalidArgument, "missing required argument %q", p.Name)
			}
			continue
		}
		if err := p.validateValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (p ParamSpec) validateValue(v any) error {
	switch p.Type {
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return model.New(model.KindInvalidArgument, "argument %q must be a string", p.Name)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return model.New(model.KindInvalidArgument, "argument %q must be one of %v", p.Name, p.Enum)
		}
	case ParamNumber:
		n, ok := toFloat(v)
		if !ok {
			return model.New(model.KindInvalidArgument, "argument %q must be a number", p.Name)
		}
		if p.HasBound && (n < p.Min || n > p.Max) {
			return model.New(model.KindOutOfRange, "argument %q must be between %v and %v", p.Name, p.Min, p.Max)
		}
	case ParamBool:
		if _, ok := v.(bool); !ok {
			return model.New(model.KindInvalidArgument, "argument %q must be a bool", p.Name)
		}
	case ParamStringArray:
		arr, ok := v.([]string)
		if !ok {
			if anyArr, ok2 := v.([]any); ok2 {
				for _, item := range anyArr {
					if _, ok3 := item.(string); !ok3 {
						return model.New(model.KindInvalidArgument, "argument %q must be an array of strings", p.Name)
					}
				}
				return nil
			}
			return model.New(model.KindInvalidArgument, "argument %q must be an array of strings", p.Name)
		}
		_ = arr
	case ParamObject:
		if _, ok := v.(map[string]any); !ok {
			return model.New(model.KindInvalidArgument, "argument %q must be an object", p.Name)
		}
	default:
		return fmt.Errorf("unrecognized schema param type %q", p.Type)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// StringArg reads a validated string argument, applying def if absent.
func StringArg(args map[string]any, name, def string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return def
}

// IntArg reads a validated numeric argument as an int, applying def if absent.
func IntArg(args map[string]any, name string, def int) int {
	if n, ok := toFloat(args[name]); ok {
		return int(n)
	}
	return def
}

// FloatArg reads a validated numeric argument as a float64, applying def
// if absent — for fractional arguments like credibilityThreshold where
// IntArg would truncate.
func FloatArg(args map[string]any, name string, def float64) float64 {
	if n, ok := toFloat(args[name]); ok {
		return n
	}
	return def
}

// BoolArg reads a validated bool argument, applying def if absent.
func BoolArg(args map[string]any, name string, def bool) bool {
	if b, ok := args[name].(bool); ok {
		return b
	}
	return def
}

// StringArrayArg reads a validated string-array argument.
func StringArrayArg(args map[string]any, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ObjectArg reads a validated object (map) argument.
func ObjectArg(args map[string]any, name string) map[string]any {
	if m, ok := args[name].(map[string]any); ok {
		return m
	}
	return nil
}
