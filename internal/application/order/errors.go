package order

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
)

var (
	ErrConflict     = domain.ErrConflict
	ErrNotFound     = domain.ErrNotFound
	ErrLineMismatch = domain.ErrLineMismatch
	ErrRepository   = errors.New("order: repository failure")
	ErrUpstream     = errors.New("order: inventory service failure")
	ErrValidation   = errors.New("validation failed")
)

// FieldError names one rejected request field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries every field violation found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
