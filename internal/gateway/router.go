package gateway

import (
	"fmt"
	"strings"

	"github.com/giantswarm/toolgate/pkg/logging"
)

// Router maps composite tool identifiers to registered tools.
// It is built once and is read-only afterwards, so it needs no locking.
type Router struct {
	byName    map[string]*Tool
	ambiguous map[string]struct{}
	order     []string
}

// NewRouter validates the registrations and builds the lookup table.
//
// Lookup is by the bare tool name. A name registered more than once cannot
// be resolved and is dropped with a warning.
func NewRouter(tools []Tool) (*Router, error) {
	r := &Router{
		byName:    make(map[string]*Tool, len(tools)),
		ambiguous: make(map[string]struct{}),
	}

	for i := range tools {
		t := tools[i]
		if t.Schema.Name == "" {
			return nil, fmt.Errorf("tool registration %d has no name", i)
		}
		if strings.Contains(t.Schema.Name, Separator) {
			return nil, fmt.Errorf("tool name %q must not contain %q", t.Schema.Name, Separator)
		}

		t.Schema = cloneSchema(t.Schema)
		if len(t.Schema.InputSchema) == 0 {
			t.Schema.InputSchema = append([]byte(nil), defaultInputSchema...)
		}
		required, err := parseRequired(t.Schema.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q has an invalid input schema: %w", t.Schema.Name, err)
		}
		t.required = required

		name := t.Schema.Name
		if _, dup := r.ambiguous[name]; dup {
			continue
		}
		if prev, dup := r.byName[name]; dup {
			logging.Warn("Router", "Tool %q is registered by targets %q and %q; calls to it will be rejected",
				name, prev.Target, t.Target)
			delete(r.byName, name)
			r.ambiguous[name] = struct{}{}
			continue
		}

		r.byName[name] = &t
		r.order = append(r.order, name)
		logging.Debug("Router", "Registered tool %s (target %s, required %v)", name, t.Target, required)
	}

	return r, nil
}

// ToolName strips everything up to and including the last separator.
func ToolName(identifier string) string {
	if i := strings.LastIndex(identifier, Separator); i >= 0 {
		return identifier[i+len(Separator):]
	}
	return identifier
}

// Resolve looks up the tool named by identifier. Matching is exact and
// case-sensitive.
func (r *Router) Resolve(identifier string) (ResolvedTool, bool) {
	name := ToolName(identifier)
	t, ok := r.byName[name]
	if !ok {
		return ResolvedTool{}, false
	}
	return ResolvedTool{Name: name, Handler: t}, true
}

// Tools returns the resolvable tools in registration order. The returned
// values are copies.
func (r *Router) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		t, ok := r.byName[name]
		if !ok {
			continue
		}
		c := *t
		c.Schema = cloneSchema(t.Schema)
		out = append(out, c)
	}
	return out
}
