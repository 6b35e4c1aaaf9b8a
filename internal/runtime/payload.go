package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultPayloadTemplate wraps the architecture description the way the cost
// estimation runtime expects it.
const DefaultPayloadTemplate = `{"prompt": {{ .architecture_description | toJson }}}`

// PayloadBuilder turns tool arguments into the JSON object sent to a runtime.
//
// Templates are Go text/templates with the sprig function set and must render
// a JSON object. A builder without a template forwards the arguments as-is.
type PayloadBuilder struct {
	name string
	tmpl *template.Template
}

// NewPayloadBuilder parses text. An empty text yields a pass-through builder.
func NewPayloadBuilder(name, text string) (*PayloadBuilder, error) {
	b := &PayloadBuilder{name: name}
	if text == "" {
		return b, nil
	}

	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse payload template %q: %w", name, err)
	}
	b.tmpl = tmpl
	return b, nil
}

// MustPayloadBuilder is like NewPayloadBuilder but panics on a parse error.
// It is meant for templates compiled into the binary.
func MustPayloadBuilder(name, text string) *PayloadBuilder {
	b, err := NewPayloadBuilder(name, text)
	if err != nil {
		panic(err)
	}
	return b
}

// Build renders the payload for args.
func (b *PayloadBuilder) Build(args map[string]any) (map[string]any, error) {
	if b.tmpl == nil {
		out := make(map[string]any, len(args))
		for k, v := range args {
			out[k] = v
		}
		return out, nil
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, args); err != nil {
		return nil, fmt.Errorf("render payload template %q: %w", b.name, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("payload template %q did not render a JSON object: %w", b.name, err)
	}
	return payload, nil
}
