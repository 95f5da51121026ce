package gateway

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports that a provider cannot create a session as configured, typically because
// the API credential is missing. It is surfaced to the caller and never retried.
type ConfigurationError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "invalid provider configuration"
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is allows comparison with ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// MissingCredential returns the error a provider reports when its API key is not configured. env names
// the environment variable the key can be supplied through.
func MissingCredential(provider, env string) *ConfigurationError {
	return &ConfigurationError{
		Provider: provider,
		Message:  fmt.Sprintf("api key is required (set it in the config file or %s)", env),
	}
}
