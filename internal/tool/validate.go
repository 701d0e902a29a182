package tool

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ValidationError reports arguments that do not match a tool's declared
// schema. It is produced before the handler runs.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ValidateArgs checks the call arguments against the tool's parameter
// schema and returns a coerced copy: declared types are enforced (with
// weakly-typed coercion for numbers arriving as floats, numeric strings and
// the like), defaults are filled in for absent optional parameters, and
// absent required parameters fail.
func ValidateArgs(t Tool, args map[string]any) (map[string]any, error) {
	verr := &ValidationError{Tool: t.Name}
	out := make(map[string]any, len(t.Params))

	declared := make(map[string]Param, len(t.Params))
	for _, p := range t.Params {
		declared[p.Name] = p
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			verr.Problems = append(verr.Problems, fmt.Sprintf("unknown parameter %q", name))
		}
	}

	for _, p := range t.Params {
		raw, present := args[p.Name]
		if !present || raw == nil {
			if p.Required {
				verr.Problems = append(verr.Problems, fmt.Sprintf("missing required parameter %q", p.Name))
				continue
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		coerced, err := coerce(p, raw)
		if err != nil {
			verr.Problems = append(verr.Problems, err.Error())
			continue
		}
		out[p.Name] = coerced
	}

	if len(verr.Problems) > 0 {
		return nil, verr
	}
	return out, nil
}

// coerce converts one raw argument to the declared parameter type.
// mapstructure's weakly-typed decoding handles the JSON number and string
// representations models actually send.
func coerce(p Param, raw any) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("parameter %q: expected %s, got %T", p.Name, p.Type, raw)
	}

	switch p.Type {
	case TypeString:
		var v string
		if err := weakDecode(raw, &v); err != nil {
			return nil, mismatch()
		}
		return v, nil
	case TypeInteger:
		// Reject fractional floats that weak decoding would truncate.
		if f, ok := raw.(float64); ok && f != float64(int64(f)) {
			return nil, mismatch()
		}
		var v int64
		if err := weakDecode(raw, &v); err != nil {
			return nil, mismatch()
		}
		return v, nil
	case TypeNumber:
		var v float64
		if err := weakDecode(raw, &v); err != nil {
			return nil, mismatch()
		}
		return v, nil
	case TypeBoolean:
		var v bool
		if err := weakDecode(raw, &v); err != nil {
			return nil, mismatch()
		}
		return v, nil
	case TypeArray:
		var v []any
		if err := weakDecode(raw, &v); err != nil {
			return nil, mismatch()
		}
		return v, nil
	case TypeObject:
		var v map[string]any
		if err := weakDecode(raw, &v); err != nil {
			return nil, mismatch()
		}
		return v, nil
	default:
		return raw, nil
	}
}

func weakDecode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
