// Package validation provides common validation utilities for configuration
// parameters across threadsearch.
//
// Every helper returns a *errors.ValidationError, which unwraps to
// errors.ErrInvalidConfiguration, so callers can test with errors.Is.
package validation
