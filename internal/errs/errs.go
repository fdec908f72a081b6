// Package errs implements the error taxonomy of the ingestion and retrieval
// engine: every operation fails into one of a small set of categories so
// that callers (and the out-of-scope HTTP transport) can project a
// consistent status without inspecting error strings.
package errs

import (
	"errors"
	"fmt"
)

// Category classifies why an operation failed.
type Category string

const (
	InvalidInput      Category = "invalid_input"
	NotFound          Category = "not_found"
	Disabled          Category = "disabled"
	Locked            Category = "locked"
	UpstreamTransient Category = "upstream_transient"
	StoreFailure      Category = "store_failure"
	PartialArtifact   Category = "partial_artifact"
	ConfigError       Category = "config_error"
)

// HTTPStatus returns the transport-level projection of a category, for use
// by an (out-of-scope) HTTP layer.
func (c Category) HTTPStatus() int {
	switch c {
	case InvalidInput:
		return 400
	case NotFound:
		return 404
	case Disabled:
		return 409
	case Locked:
		return 423
	case UpstreamTransient, StoreFailure, PartialArtifact, ConfigError:
		return 500
	default:
		return 500
	}
}

// Error wraps an underlying error with an operation name and a category,
// following the teacher's helper.NewError(operation, err) wrapping idiom.
type Error struct {
	Category  Category
	Operation string
	Err       error
}

func New(category Category, operation string, err error) *Error {
	return &Error{Category: category, Operation: operation, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Operation, e.Category)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf extracts the Category of err, defaulting to StoreFailure when
// err does not carry one (e.g. it originated outside this package).
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return StoreFailure
}

// Is reports whether err (or anything it wraps) was created with category c.
func Is(err error, c Category) bool {
	return CategoryOf(err) == c
}
