package narrative

import (
	"errors"
	"fmt"
)

// Sentinel failure classes for the provider contract. Callers branch on
// these with errors.Is; the concrete provider and cause are wrapped.
var (
	// ErrProviderTimeout is returned when a provider misses its deadline.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderFailure is returned for transport or upstream errors.
	ErrProviderFailure = errors.New("provider error")

	// ErrMalformedResponse is returned when a provider's output cannot be
	// parsed into narrative sections. Treated like ErrProviderFailure for
	// fallback purposes.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// providerErr wraps a sentinel with the provider's name.
func providerErr(provider string, sentinel error, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", provider, sentinel)
	}
	return fmt.Errorf("%s: %w: %v", provider, sentinel, cause)
}
