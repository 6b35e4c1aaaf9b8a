package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadToolSchema reads a JSON Schema document written in YAML or JSON and
// returns it as JSON. The document must be an object.
func LoadToolSchema(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newConfigurationError(path, ErrorTypeIO, "cannot read tool schema", err,
			"Check that schemaFile is relative to the configuration directory or absolute")
	}
	return parseToolSchema(path, data)
}

func parseToolSchema(path string, data []byte) (json.RawMessage, error) {
	converted, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, newConfigurationError(path, ErrorTypeParse, "tool schema is not valid YAML or JSON", err)
	}

	var header map[string]any
	if err := json.Unmarshal(converted, &header); err != nil {
		return nil, newConfigurationError(path, ErrorTypeSchema, "tool schema must be an object", err)
	}
	if t, ok := header["type"]; ok && t != "object" {
		return nil, newConfigurationError(path, ErrorTypeSchema,
			fmt.Sprintf("tool schema type must be \"object\", got %v", t), nil)
	}
	return json.RawMessage(converted), nil
}
