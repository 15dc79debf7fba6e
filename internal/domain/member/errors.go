package member

import "strings"

// FieldError names one invalid field of a draft.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned by Fields.Validate. It is a local failure:
// nothing has been sent to the member store.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Error joins every field failure into one line.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid member: " + strings.Join(parts, ", ")
}

// ByField returns the first message for each invalid field.
func (e *ValidationError) ByField() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, seen := out[f.Field]; !seen {
			out[f.Field] = f.Message
		}
	}
	return out
}

// Has reports whether field is among the failures.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
