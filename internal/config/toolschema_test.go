package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadToolSchema(t *testing.T) {
	dir := t.TempDir()

	yamlPath := writeFile(t, dir, "cost.yaml", `
type: object
properties:
  architecture_description:
    type: string
required:
  - architecture_description
`)
	schema, err := LoadToolSchema(yamlPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"architecture_description":{"type":"string"}},"required":["architecture_description"]}`, string(schema))

	jsonPath := writeFile(t, dir, "cost.json", `{"type":"object","properties":{}}`)
	schema, err = LoadToolSchema(jsonPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(schema))
}

func TestLoadToolSchema_Rejects(t *testing.T) {
	tests := map[string]struct {
		content   string
		errorType string
	}{
		"not an object": {"- a\n- b\n", ErrorTypeSchema},
		"wrong type":    {"type: string\n", ErrorTypeSchema},
		"invalid yaml":  {"type: [\n", ErrorTypeParse},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "schema.yaml", tt.content)
			_, err := LoadToolSchema(path)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.errorType, ce.ErrorType)
		})
	}

	_, err := LoadToolSchema("/nonexistent/schema.yaml")
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrorTypeIO, ce.ErrorType)
}
