package network

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid network setting or secret.
// It is fatal: nothing is retried and no network call has been made.
type ConfigurationError struct {
	// Network is the requested identifier.
	Network string

	// Field names the offending setting (e.g. "url", "signer_ref") or the
	// referenced secret. Empty for an unknown identifier.
	Field string

	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("network %q: %s: %s", e.Network, e.Field, e.Message)
	}
	return fmt.Sprintf("network %q: %s", e.Network, e.Message)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
