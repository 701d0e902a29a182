package tool

import "context"

// Type represents JSON Schema parameter types.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
)

// Param describes one declared parameter. Params keep their declaration
// order so listings and schemas are stable.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        Type   `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Handler executes a tool with validated, coerced arguments and returns a
// string description of the outcome. Handlers must honor ctx cancellation.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a capability the model can invoke. Immutable once registered;
// re-registering the same name overwrites (used by reload).
type Tool struct {
	Name             string
	Description      string
	Params           []Param
	Handler          Handler
	RequiresApproval bool
}

// Schema represents a JSON Schema for tool parameters, in the shape
// providers expect.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Declaration declares a tool's function signature for the LLM.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Declaration builds the schema sent to the provider.
func (t Tool) Declaration() Declaration {
	d := Declaration{Name: t.Name, Description: t.Description}
	if len(t.Params) == 0 {
		return d
	}
	schema := &Schema{
		Type:       TypeObject,
		Properties: make(map[string]*Schema, len(t.Params)),
	}
	for _, p := range t.Params {
		schema.Properties[p.Name] = &Schema{
			Type:        p.Type,
			Description: p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	d.Parameters = schema
	return d
}
