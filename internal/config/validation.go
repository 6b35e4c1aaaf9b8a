package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/toolgate/internal/oauth"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// orNil keeps an empty collection from becoming a non-nil error.
func (ve ValidationErrors) orNil() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

func validateURL(errs *ValidationErrors, field, value string) {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add(field, "must be an absolute URL", value)
	}
}

// ValidateOAuth checks every provider registration.
func (c Config) ValidateOAuth() error {
	var errs ValidationErrors
	seen := map[string]bool{}

	for i, p := range c.OAuth.Providers {
		prefix := fmt.Sprintf("oauth.providers[%d]", i)
		if seen[p.Name] {
			errs.Add(prefix+".name", "is duplicated", p.Name)
		}
		seen[p.Name] = true

		if err := ValidateOneOf(prefix+".authStyle", strings.ToLower(p.AuthStyle), authStyles); err != nil {
			errs = append(errs, err.(ValidationError))
		}

		converted, _ := p.OAuthProvider()
		var cfgErr *oauth.ConfigurationError
		for _, err := range unwrapJoined(converted.Validate()) {
			if errors.As(err, &cfgErr) {
				errs.Add(prefix+"."+cfgErr.Field, cfgErr.Reason)
			}
		}
		if p.TokenURL != "" {
			validateURL(&errs, prefix+".tokenUrl", p.TokenURL)
		}
	}
	return errs.orNil()
}

// ValidateGateway checks what serve needs: targets, tools and the runtime
// each target calls.
func (c Config) ValidateGateway() error {
	var errs ValidationErrors

	if c.Gateway.ListenAddr == "" {
		errs.Add("gateway.listenAddr", "is required")
	}
	if c.Gateway.Authorizer.Enabled() {
		validateURL(&errs, "gateway.authorizer.discoveryUrl", c.Gateway.Authorizer.DiscoveryURL)
	}

	for ti, t := range c.Gateway.Targets {
		prefix := fmt.Sprintf("gateway.targets[%d]", ti)
		if t.Name == "" {
			errs.Add(prefix+".name", "is required")
		}
		if strings.Contains(t.Name, "___") {
			errs.Add(prefix+".name", "must not contain \"___\"", t.Name)
		}
		if t.Runtime.ARN == "" {
			errs.Add(prefix+".runtime.arn", "is required")
		}
		if t.Runtime.Endpoint == "" {
			errs.Add(prefix+".runtime.endpoint", "is required")
		} else {
			validateURL(&errs, prefix+".runtime.endpoint", t.Runtime.Endpoint)
		}
		if t.Runtime.TokenProvider != "" {
			if _, ok := c.OAuth.Provider(t.Runtime.TokenProvider); !ok {
				errs.Add(prefix+".runtime.tokenProvider", "names an unknown provider", t.Runtime.TokenProvider)
			}
		}
		if len(t.Tools) == 0 {
			errs.Add(prefix+".tools", "must have at least one tool")
		}
		for i, tool := range t.Tools {
			if tool.Name == "" {
				errs.Add(fmt.Sprintf("%s.tools[%d].name", prefix, i), "is required")
			}
			if tool.SchemaFile != "" && tool.InputSchema != nil {
				errs.Add(fmt.Sprintf("%s.tools[%d]", prefix, i), "set either schemaFile or inputSchema, not both")
			}
		}
	}
	return errs.orNil()
}

// ValidateClient checks what the calling commands need.
func (c Config) ValidateClient() error {
	var errs ValidationErrors

	if c.Client.GatewayURL == "" {
		errs.Add("client.gatewayUrl", "is required")
	} else {
		validateURL(&errs, "client.gatewayUrl", c.Client.GatewayURL)
	}
	if c.Client.Provider == "" {
		errs.Add("client.provider", "is required")
	} else if _, ok := c.OAuth.Provider(c.Client.Provider); !ok {
		errs.Add("client.provider", "names an unknown provider", c.Client.Provider)
	}
	if c.Client.AuthFlow != "" && c.Client.AuthFlow != string(oauth.AuthFlowM2M) {
		errs.Add("client.authFlow", "only M2M is supported", c.Client.AuthFlow)
	}
	return errs.orNil()
}

func unwrapJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
