package config

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches any ParseError
	ErrParse = errors.New("configuration parse error")
	// ErrMissingField matches any MissingFieldError
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField matches any InvalidFieldError
	ErrInvalidField = errors.New("invalid field value")
)

// ParseError reports a configuration document that could not be read,
// decoded or structurally checked.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse configuration: %v", e.Err)
	}
	return fmt.Sprintf("parse configuration %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// MissingFieldError reports a required key that is absent or empty.
// Field is the dotted document path, e.g. "common.DOMAIN_NAME".
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InvalidFieldError reports a present value that fails validation
type InvalidFieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Field, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidField }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Err: fmt.Errorf(format, args...)}
}
