// Package common defines shared constants and sentinel errors used across
// receiptpipe components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrVersionConflict = errors.New("version conflict")

	// Validation errors (bad manifest shape, disallowed type, oversize file,
	// too many files, missing identifiers).
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed operator token).
	ErrInvalidToken = errors.New("invalid token")
)
