package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/navarrastar/contactsheet/pkg/models"
)

// Reason says why a field was rejected.
type Reason int

const (
	Missing Reason = iota + 1
	Malformed
)

// Error is a rejected submission. It names the offending field.
type Error struct {
	Field  Field
	Reason Reason
}

func (e *Error) Error() string {
	switch {
	case e.Reason == Missing:
		return fmt.Sprintf("Missing required field: %s", e.Field)
	case e.Field == Email:
		return "Invalid email format"
	default:
		return fmt.Sprintf("Invalid %s", Label(e.Field))
	}
}

// IsValidationError reports whether err is, or wraps, a *Error.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// CheckSubmission is the server-side check: required presence in the fixed
// order of Required, then email shape. The client's own validation is never
// trusted in place of this.
func CheckSubmission(s models.Submission) error {
	for _, f := range Required {
		if strings.TrimSpace(Value(s, f)) == "" {
			return &Error{Field: f, Reason: Missing}
		}
	}
	if !EmailPattern.MatchString(strings.TrimSpace(s.Email)) {
		return &Error{Field: Email, Reason: Malformed}
	}
	return nil
}

// Normalize trims surrounding whitespace from every field.
func Normalize(s models.Submission) models.Submission {
	for _, f := range Fields {
		SetValue(&s, f, strings.TrimSpace(Value(s, f)))
	}
	return s
}
