package app

import (
	"fmt"

	"github.com/giantswarm/toolgate/internal/config"
	"github.com/giantswarm/toolgate/internal/gateway"
	"github.com/giantswarm/toolgate/internal/runtime"
)

// BuildTools turns configured targets into gateway registrations. A tool's
// timeout falls back to its target's runtime timeout, then to the
// dispatcher default.
func BuildTools(targets []config.TargetConfig) ([]gateway.Tool, error) {
	var tools []gateway.Tool
	for _, t := range targets {
		target := runtime.Target{
			Name:          t.Name,
			ARN:           t.Runtime.ARN,
			Endpoint:      t.Runtime.Endpoint,
			Qualifier:     t.Runtime.Qualifier,
			TokenProvider: t.Runtime.TokenProvider,
			TokenScopes:   t.Runtime.TokenScopes,
		}

		for _, tc := range t.Tools {
			payload, err := runtime.NewPayloadBuilder(tc.Name, tc.PayloadTemplate)
			if err != nil {
				return nil, fmt.Errorf("target %s: %w", t.Name, err)
			}

			timeout := tc.Timeout.Std()
			if timeout == 0 {
				timeout = t.Runtime.Timeout.Std()
			}

			tools = append(tools, gateway.Tool{
				Target: t.Name,
				Schema: gateway.ToolSchema{
					Name:        tc.Name,
					Description: tc.Description,
					InputSchema: tc.Schema,
				},
				Runtime: target,
				Payload: payload,
				Timeout: timeout,
			})
		}
	}
	return tools, nil
}
