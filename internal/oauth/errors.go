package oauth

import (
	"errors"
	"fmt"
)

// ConfigurationError reports provider settings that make an exchange
// impossible. It is not retryable and is meant to fail startup.
type ConfigurationError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("oauth provider %q: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("oauth provider %q: %s: %s", e.Provider, e.Field, e.Reason)
}

// AuthExchangeError reports a failed client-credentials exchange: rejection
// by the authorization server, a transport failure, or an unusable response.
// Callers may retry after backoff.
type AuthExchangeError struct {
	Provider    string
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *AuthExchangeError) Error() string {
	msg := fmt.Sprintf("token exchange for provider %q failed", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += " (" + e.Description + ")"
		}
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthExchangeError) Unwrap() error {
	return e.Err
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

// IsAuthExchangeError checks if an error is an AuthExchangeError.
func IsAuthExchangeError(err error) bool {
	var exchangeErr *AuthExchangeError
	return errors.As(err, &exchangeErr)
}
