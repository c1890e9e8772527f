package tools

// Schema helpers for building JSON Schema definitions.

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property with optional description.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// WithThought returns a copy of schema with a thought parameter added.
// The input schema is not modified. If requireThought is true, "thought" is added to the required array.
func WithThought(schema map[string]interface{}, requireThought bool) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range schema {
		result[k] = v
	}

	props := make(map[string]interface{})
	if orig, ok := schema["properties"].(map[string]interface{}); ok {
		for k, v := range orig {
			props[k] = v
		}
	}
	result["properties"] = props

	props["thought"] = StringProperty(
		"Optional: why you are calling this tool and what you expect it to return.",
	)

	if requireThought {
		required, _ := result["required"].([]string)
		result["required"] = append(append([]string(nil), required...), "thought")
	}

	return result
}

// BuildSchemaWithThought creates an ObjectSchema and adds thought support in one call.
func BuildSchemaWithThought(properties map[string]interface{}, requireThought bool, required ...string) map[string]interface{} {
	schema := ObjectSchema(properties, required...)
	return WithThought(schema, requireThought)
}
