// Package errors defines the sentinel errors shared across Mission Control.
//
// Callers categorize failures with errors.Is. This package must not import any
// other internal package.
package errors

import "errors"

var (
	// ErrIntegrationNotFound indicates the requested integration row does not exist.
	ErrIntegrationNotFound = errors.New("integration not found")

	// ErrTestFailed indicates an integration test aborted before a result could
	// be recorded. No health check row is written for such a run.
	ErrTestFailed = errors.New("test failed")

	// ErrStoreUnavailable indicates no database connection is configured.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrCommandFailed indicates an external command exited non-zero.
	ErrCommandFailed = errors.New("command failed")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
