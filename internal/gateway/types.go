package gateway

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/giantswarm/toolgate/internal/runtime"
)

// Separator joins a target name and a tool name in a composite identifier,
// as in "AWSCostEstimationLambdaTarget___aws_cost_estimation".
const Separator = "___"

// ToolSchema is the registration record of a tool.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Tool binds a schema to the runtime that serves it.
type Tool struct {
	// Target is the gateway target the tool belongs to.
	Target  string
	Schema  ToolSchema
	Runtime runtime.Target
	// Payload renders arguments into the runtime payload. Nil forwards the
	// arguments unchanged.
	Payload *runtime.PayloadBuilder
	// Timeout bounds the runtime call; zero uses the dispatcher default.
	Timeout time.Duration

	required []string
}

// ExposedName is the composite identifier clients see in tool listings.
func (t Tool) ExposedName() string {
	if t.Target == "" {
		return t.Schema.Name
	}
	return t.Target + Separator + t.Schema.Name
}

// Required returns the argument names the input schema declares as required.
func (t Tool) Required() []string {
	return append([]string(nil), t.required...)
}

// ResolvedTool is the outcome of resolving a composite identifier.
type ResolvedTool struct {
	Name    string
	Handler *Tool
}

// InvocationRequest is the inbound envelope of a tool call.
type InvocationRequest struct {
	ToolIdentifier string         `json:"toolIdentifier"`
	Arguments      map[string]any `json:"arguments"`
	CallerContext  map[string]any `json:"callerContext,omitempty"`
}

// InvocationResult is what every dispatch produces, successful or not.
// Body is the runtime reply on success and an error message otherwise.
type InvocationResult struct {
	StatusCode int  `json:"statusCode"`
	Body       any  `json:"body"`
	IsError    bool `json:"isError"`

	// Err carries the classified failure for in-process callers.
	Err error `json:"-"`
}

// BodyText renders the body as text: strings as-is, everything else as JSON.
func (r InvocationResult) BodyText() string {
	switch b := r.Body.(type) {
	case nil:
		return ""
	case string:
		return b
	case json.RawMessage:
		return string(b)
	case []byte:
		return string(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

type schemaHeader struct {
	Type     string   `json:"type"`
	Required []string `json:"required"`
}

var defaultInputSchema = json.RawMessage(`{"type":"object","properties":{}}`)

func parseRequired(schema json.RawMessage) ([]string, error) {
	var h schemaHeader
	if err := json.Unmarshal(schema, &h); err != nil {
		return nil, err
	}
	return h.Required, nil
}

func cloneSchema(s ToolSchema) ToolSchema {
	s.InputSchema = bytes.Clone(s.InputSchema)
	return s
}
