package validation

import "github.com/navarrastar/contactsheet/pkg/models"

// Form tracks field values and field-scoped error messages the way the
// browser form does: errors appear on blur, disappear on edit of that field
// only, and a final exhaustive pass gates submission.
type Form struct {
	values models.Submission
	errors map[Field]string
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{errors: make(map[Field]string)}
}

// Edit stores value for field and clears that field's error. Other fields'
// errors are left alone.
func (f *Form) Edit(field Field, value string) {
	SetValue(&f.values, field, value)
	delete(f.errors, field)
}

// Blur validates a single field and records or clears its error.
func (f *Form) Blur(field Field) bool {
	res := Validate(field, Value(f.values, field))
	if res.Valid {
		delete(f.errors, field)
		return true
	}
	f.errors[field] = res.Message
	return false
}

// Submit validates every field. It returns false while any field fails, in
// which case submission must not proceed.
func (f *Form) Submit() bool {
	ok := true
	for _, field := range Fields {
		if !f.Blur(field) {
			ok = false
		}
	}
	return ok
}

// Reset clears all values and errors.
func (f *Form) Reset() {
	f.values = models.Submission{}
	f.errors = make(map[Field]string)
}

// Error returns the message shown for field, if any.
func (f *Form) Error(field Field) (string, bool) {
	msg, ok := f.errors[field]
	return msg, ok
}

// Errors returns a copy of the current field errors.
func (f *Form) Errors() map[Field]string {
	out := make(map[Field]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Values returns the current field values.
func (f *Form) Values() models.Submission {
	return f.values
}
