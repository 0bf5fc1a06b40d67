package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling. Detailed failures wrap
// one of these, so callers match with errors.Is.
var (
	ErrInvalidOrder   = errors.New("invalid_order")
	ErrInvalidFill    = errors.New("invalid_fill")
	ErrInvalidCancel  = errors.New("invalid_cancel")
	ErrOrderNotFound  = errors.New("order_not_found")
	ErrDuplicateOrder = errors.New("duplicate_order")
)

// ValidationError represents a malformed input value, such as a bad CLI
// argument or a scenario file entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
