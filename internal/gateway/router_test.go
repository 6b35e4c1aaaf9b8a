package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const costSchema = `{
  "type": "object",
  "properties": {
    "architecture_description": {"type": "string", "description": "Description of the AWS architecture"}
  },
  "required": ["architecture_description"]
}`

func costTool() Tool {
	return Tool{
		Target: "AWSCostEstimationLambdaTarget",
		Schema: ToolSchema{
			Name:        "aws_cost_estimation",
			Description: "Estimate AWS costs for an architecture",
			InputSchema: json.RawMessage(costSchema),
		},
	}
}

func TestRouter_Resolve(t *testing.T) {
	r, err := NewRouter([]Tool{costTool()})
	require.NoError(t, err)

	tests := []struct {
		identifier string
		wantName   string
		wantOK     bool
	}{
		{"AWSCostEstimationLambdaTarget___aws_cost_estimation", "aws_cost_estimation", true},
		{"aws_cost_estimation", "aws_cost_estimation", true},
		{"Other___Nested___aws_cost_estimation", "aws_cost_estimation", true},
		{"unknown_tool", "", false},
		{"AWS_COST_ESTIMATION", "", false},
		{"aws_cost", "", false},
		{"aws_cost_estimation___", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			got, ok := r.Resolve(tt.identifier)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, got.Name)
			if ok {
				assert.Equal(t, "AWSCostEstimationLambdaTarget", got.Handler.Target)
			}
		})
	}
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "b", ToolName("a___b"))
	assert.Equal(t, "c", ToolName("a___b___c"))
	assert.Equal(t, "plain", ToolName("plain"))
	assert.Equal(t, "a__b", ToolName("a__b"))
}

func TestRouter_RequiredArguments(t *testing.T) {
	r, err := NewRouter([]Tool{costTool()})
	require.NoError(t, err)

	got, ok := r.Resolve("aws_cost_estimation")
	require.True(t, ok)
	assert.Equal(t, []string{"architecture_description"}, got.Handler.Required())
}

func TestRouter_DuplicateNameIsAmbiguous(t *testing.T) {
	second := costTool()
	second.Target = "OtherTarget"
	other := Tool{Target: "OtherTarget", Schema: ToolSchema{Name: "other"}}

	r, err := NewRouter([]Tool{costTool(), second, other, costTool()})
	require.NoError(t, err)

	_, ok := r.Resolve("AWSCostEstimationLambdaTarget___aws_cost_estimation")
	assert.False(t, ok)
	_, ok = r.Resolve("OtherTarget___aws_cost_estimation")
	assert.False(t, ok)

	tools := r.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "other", tools[0].Schema.Name)
}

func TestRouter_InvalidRegistrations(t *testing.T) {
	_, err := NewRouter([]Tool{{Schema: ToolSchema{}}})
	assert.Error(t, err)

	_, err = NewRouter([]Tool{{Schema: ToolSchema{Name: "a___b"}}})
	assert.Error(t, err)

	_, err = NewRouter([]Tool{{Schema: ToolSchema{Name: "a", InputSchema: json.RawMessage(`{not json`)}}})
	assert.Error(t, err)
}

func TestRouter_DefaultSchema(t *testing.T) {
	r, err := NewRouter([]Tool{{Schema: ToolSchema{Name: "ping"}}})
	require.NoError(t, err)

	tools := r.Tools()
	require.Len(t, tools, 1)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(tools[0].Schema.InputSchema))
	assert.Empty(t, tools[0].Required())
	assert.Equal(t, "ping", tools[0].ExposedName())
}

func TestRouter_SchemasAreImmutable(t *testing.T) {
	reg := costTool()
	r, err := NewRouter([]Tool{reg})
	require.NoError(t, err)

	// Mutating the caller's registration or a returned copy must not leak in.
	reg.Schema.InputSchema[0] = 'X'
	tools := r.Tools()
	tools[0].Schema.InputSchema[0] = 'Y'

	again := r.Tools()
	assert.JSONEq(t, costSchema, string(again[0].Schema.InputSchema))
	assert.Equal(t, "AWSCostEstimationLambdaTarget___aws_cost_estimation", again[0].ExposedName())
}
