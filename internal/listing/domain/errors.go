package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation           = errors.New("invalid request")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrListingNotFound      = errors.New("listing not found")
	ErrImageNotFound        = errors.New("image not found")
	ErrListingDeleted       = errors.New("listing is deleted")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrStorage              = errors.New("storage failure")
	ErrDuplicateLink        = errors.New("image already linked to listing")
)

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsMediaConstraint reports size or type violations of uploaded files.
func IsMediaConstraint(err error) bool {
	return errors.Is(err, ErrUnsupportedMediaType) || errors.Is(err, ErrPayloadTooLarge)
}

// FieldErrors maps a field name to the reason it was rejected.
type FieldErrors map[string]string

func (e FieldErrors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e FieldErrors) Unwrap() error { return ErrValidation }

// OrNil lets callers return a FieldErrors value only when something was added.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
