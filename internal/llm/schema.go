package llm

import (
	"github.com/invopop/jsonschema"
)

// Schema describes the JSON object a model call must produce.
type Schema struct {
	// Name identifies the output, used as the hidden tool name.
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// SchemaFor derives a Schema from the json and jsonschema tags of T.
func SchemaFor[T any](name, description string) Schema {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	var zero T
	root := reflector.Reflect(&zero)

	return Schema{
		Name:        name,
		Description: description,
		Properties:  schemaProperties(root),
		Required:    root.Required,
	}
}

func schemaProperties(s *jsonschema.Schema) map[string]any {
	if s.Properties == nil {
		return nil
	}
	props := make(map[string]any)
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = propertySchema(pair.Value)
	}
	return props
}

func propertySchema(s *jsonschema.Schema) map[string]any {
	m := make(map[string]any)

	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}

	// invopop/jsonschema uses anyOf for nullable fields
	for _, sub := range s.AnyOf {
		if sub.Type != "null" && sub.Type != "" {
			m["type"] = sub.Type
			break
		}
	}

	if s.Properties != nil {
		m["type"] = "object"
		m["properties"] = schemaProperties(s)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}

	if s.Items != nil {
		m["items"] = propertySchema(s.Items)
	}

	return m
}
