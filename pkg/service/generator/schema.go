package generator

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// ideaArraySchema is the source of truth for the generated payload shape. It
// is validated against decoded responses and converted to a genai schema for
// structured output.
func ideaArraySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "array",
		Items: ideaSchema(),
	}
}

// titleArraySchema is the shape of a remix-titles response
func titleArraySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	}
}

func ideaSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":        {Type: "string", Description: "Unique startup name"},
			"icon":        {Type: "string", Description: "Lucide icon name"},
			"tagline":     {Type: "string"},
			"category":    {Type: "string", Description: "Two-part category: Group / Subgroup"},
			"rating":      {Type: "number"},
			"description": {Type: "string"},
			"tags":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"remixes":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
		Required: []string{"name", "icon", "tagline", "category", "rating", "description", "tags"},
	}
}

// validateIdeaPayload checks a decoded JSON value against the idea array schema
func validateIdeaPayload(value any) error {
	resolved, err := ideaArraySchema().Resolve(nil)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve idea schema")
	}
	if err := resolved.Validate(value); err != nil {
		return goerr.Wrap(err, "payload does not match idea schema")
	}
	return nil
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{}

	switch schema.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number", "integer":
		genaiSchema.Type = genai.TypeNumber
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	if schema.Description != "" {
		genaiSchema.Description = schema.Description
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema)
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
