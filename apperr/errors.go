// Package apperr holds the sentinel errors shared by the engine, the store,
// the HTTP layer and the HTTP client.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrMutationFailed     = errors.New("mutation failed")
	ErrHasChildren        = errors.New("cannot delete, has children")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Wire codes used in error responses.
const (
	CodeNotFound           = "not_found"
	CodeValidation         = "validation"
	CodeHasChildren        = "has_children"
	CodeInvariantViolation = "invariant_violation"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal"
)

// Code returns the wire code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrHasChildren):
		return CodeHasChildren
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInvariantViolation):
		return CodeInvariantViolation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	}
	return CodeInternal
}

// FromCode maps a wire code back to its sentinel. Unknown codes return nil.
func FromCode(code string) error {
	switch code {
	case CodeHasChildren:
		return ErrHasChildren
	case CodeNotFound:
		return ErrNotFound
	case CodeValidation:
		return ErrValidation
	case CodeInvariantViolation:
		return ErrInvariantViolation
	case CodeUnauthorized:
		return ErrUnauthorized
	}
	return nil
}
