package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadBuilder_DefaultTemplate(t *testing.T) {
	b := MustPayloadBuilder("aws_cost_estimation", DefaultPayloadTemplate)

	payload, err := b.Build(map[string]any{
		"architecture_description": `ALB + 2x EC2 t3.medium "prod"`,
		"ignored":                  true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prompt": `ALB + 2x EC2 t3.medium "prod"`}, payload)
}

func TestPayloadBuilder_SprigFunctions(t *testing.T) {
	b, err := NewPayloadBuilder("t", `{"prompt": {{ .text | upper | toJson }}, "region": {{ .region | default "us-east-1" | toJson }}}`)
	require.NoError(t, err)

	payload, err := b.Build(map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", payload["prompt"])
	assert.Equal(t, "us-east-1", payload["region"])
}

func TestPayloadBuilder_PassThrough(t *testing.T) {
	b, err := NewPayloadBuilder("t", "")
	require.NoError(t, err)

	args := map[string]any{"a": 1}
	payload, err := b.Build(args)
	require.NoError(t, err)
	assert.Equal(t, args, payload)

	payload["b"] = 2
	assert.NotContains(t, args, "b", "payload must not alias the arguments")
}

func TestPayloadBuilder_Errors(t *testing.T) {
	_, err := NewPayloadBuilder("bad", "{{ .unterminated")
	assert.Error(t, err)

	b := MustPayloadBuilder("not-object", `[{{ .x | toJson }}]`)
	_, err = b.Build(map[string]any{"x": 1})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "JSON object"))

	assert.Panics(t, func() { MustPayloadBuilder("bad", "{{") })
}

func TestDecodeEventStream(t *testing.T) {
	out, err := decodeEventStream(strings.NewReader("data: a\r\ndata: b\nid: 1\n\ndata:c\n"))
	require.NoError(t, err)
	// "data:c" has no space after the colon and is not collected.
	assert.Equal(t, "ab", string(out))
}

func TestContentTypeHelpers(t *testing.T) {
	assert.True(t, isJSON("application/json; charset=utf-8"))
	assert.True(t, isJSON("application/problem+json"))
	assert.False(t, isJSON("text/plain"))
	assert.True(t, isEventStream("text/event-stream"))
	assert.False(t, isEventStream(""))
}
