package client

import (
	"strings"

	"github.com/giantswarm/toolgate/internal/gateway"
)

// matchTool picks the tool that name refers to.
func matchTool(tools []gateway.ToolSchema, name string) (gateway.ToolSchema, error) {
	if name == "" {
		return gateway.ToolSchema{}, &ToolNotFoundError{Name: name}
	}

	for _, t := range tools {
		if t.Name == name {
			return t, nil
		}
	}

	var suffixed []gateway.ToolSchema
	for _, t := range tools {
		if gateway.ToolName(t.Name) == name {
			suffixed = append(suffixed, t)
		}
	}
	if len(suffixed) == 1 {
		return suffixed[0], nil
	}
	if len(suffixed) > 1 {
		return gateway.ToolSchema{}, &ToolNotFoundError{Name: name, Candidates: names(suffixed)}
	}

	var partial []gateway.ToolSchema
	for _, t := range tools {
		if strings.Contains(t.Name, name) {
			partial = append(partial, t)
		}
	}
	switch len(partial) {
	case 0:
		return gateway.ToolSchema{}, &ToolNotFoundError{Name: name}
	case 1:
		return partial[0], nil
	default:
		return gateway.ToolSchema{}, &ToolNotFoundError{Name: name, Candidates: names(partial)}
	}
}

func names(tools []gateway.ToolSchema) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name
	}
	return out
}
