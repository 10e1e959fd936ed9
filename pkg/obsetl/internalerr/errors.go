// Package internalerr holds the sentinel errors shared across obsetl packages.
package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingColumn      = errors.New("missing required column")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing analysis credentials")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
