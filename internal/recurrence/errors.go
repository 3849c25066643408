package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRule marks rules whose parameters are contradictory or out of range.
	ErrInvalidRule = errors.New("invalid recurrence rule")
)

// RuleError describes which part of a rule was rejected. It matches
// ErrInvalidRule with errors.Is.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRule, e.Field, e.Reason)
}

func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

func invalid(field, format string, args ...any) error {
	return &RuleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
