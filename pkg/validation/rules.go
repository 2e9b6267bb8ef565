// Package validation holds the per-field rules applied to contact submissions,
// both before a client submits and again when the server ingests.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/navarrastar/contactsheet/pkg/models"
)

// Field identifies a form field by its wire key.
type Field string

const (
	FullName      Field = "fullName"
	Email         Field = "email"
	Phone         Field = "phone"
	StreetAddress Field = "streetAddress"
	City          Field = "city"
	Postcode      Field = "postcode"
	Comments      Field = "comments"
)

// Fields lists every form field in display order.
var Fields = []Field{FullName, Email, Phone, StreetAddress, City, Postcode, Comments}

// Required is the order in which the server checks for missing values.
var Required = []Field{FullName, Email, StreetAddress, City, Postcode}

var (
	namePattern     = regexp.MustCompile(`^[a-zA-Z\s\-'.]{2,50}$`)
	phonePattern    = regexp.MustCompile(`^\+?[\s\-()]*(?:\d[\s\-()]*){10,15}$`)
	postcodePattern = regexp.MustCompile(`(?i)^[A-Z0-9\s]{3,10}$`)

	// EmailPattern is the local@domain.tld shape shared by client and server.
	EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Rule describes the constraints on one field.
type Rule struct {
	Label     string
	Required  bool
	Pattern   *regexp.Regexp
	MinLength int
	MaxLength int
	Message   string
}

var rules = map[Field]Rule{
	FullName: {
		Label:    "Full Name",
		Required: true,
		Pattern:  namePattern,
		Message:  "Please enter a valid name (2-50 characters, letters, spaces, hyphens, and apostrophes only)",
	},
	Email: {
		Label:    "Email Address",
		Required: true,
		Pattern:  EmailPattern,
		Message:  "Please enter a valid email address",
	},
	Phone: {
		Label:   "Phone Number",
		Pattern: phonePattern,
		Message: "Please enter a valid phone number (10-15 digits)",
	},
	StreetAddress: {
		Label:     "Street Address",
		Required:  true,
		MinLength: 5,
		MaxLength: 100,
		Message:   "Please enter a valid street address (5-100 characters)",
	},
	City: {
		Label:    "City",
		Required: true,
		Pattern:  namePattern,
		Message:  "Please enter a valid city name (2-50 characters)",
	},
	Postcode: {
		Label:    "Postcode",
		Required: true,
		Pattern:  postcodePattern,
		Message:  "Please enter a valid postcode",
	},
	Comments: {
		Label: "Comments",
	},
}

// RuleFor returns the rule for field and whether one exists.
func RuleFor(field Field) (Rule, bool) {
	r, ok := rules[field]
	return r, ok
}

// Label returns the human label for field, falling back to its key.
func Label(field Field) string {
	if r, ok := rules[field]; ok {
		return r.Label
	}
	return string(field)
}

// Result is the outcome of validating a single field.
type Result struct {
	Valid   bool
	Message string
}

// Validate applies field's rule to raw. Unknown fields are always valid, and an
// empty optional field short-circuits to valid.
func Validate(field Field, raw string) Result {
	r, ok := rules[field]
	if !ok {
		return Result{Valid: true}
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		if r.Required {
			return Result{Message: r.Label + " is required"}
		}
		return Result{Valid: true}
	}

	if r.Pattern != nil && !r.Pattern.MatchString(value) {
		return Result{Message: r.Message}
	}

	n := utf8.RuneCountInString(value)
	if r.MinLength > 0 && n < r.MinLength {
		return Result{Message: r.Message}
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		return Result{Message: r.Message}
	}

	return Result{Valid: true}
}

// ValidateAll reports whether every field of s passes its rule.
func ValidateAll(s models.Submission) bool {
	for _, f := range Fields {
		if !Validate(f, Value(s, f)).Valid {
			return false
		}
	}
	return true
}

// Value reads field from s.
func Value(s models.Submission, field Field) string {
	switch field {
	case FullName:
		return s.FullName
	case Email:
		return s.Email
	case Phone:
		return s.Phone
	case StreetAddress:
		return s.StreetAddress
	case City:
		return s.City
	case Postcode:
		return s.Postcode
	case Comments:
		return s.Comments
	}
	return ""
}

// SetValue writes value into field of s.
func SetValue(s *models.Submission, field Field, value string) {
	switch field {
	case FullName:
		s.FullName = value
	case Email:
		s.Email = value
	case Phone:
		s.Phone = value
	case StreetAddress:
		s.StreetAddress = value
	case City:
		s.City = value
	case Postcode:
		s.Postcode = value
	case Comments:
		s.Comments = value
	}
}
