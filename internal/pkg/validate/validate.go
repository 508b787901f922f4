package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-eid-verify/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the shared validator instance; it caches struct metadata across calls.
var v = validator.New()

// FieldError names one failed validation rule.
type FieldError struct {
	Field string
	Tag   string
}

// Error lists every rule a value failed. It unwraps to domain.ErrBadRequest.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", f.Field, f.Tag))
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() error { return domain.ErrBadRequest }

// Struct validates s using its validate tags.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(ve))}
	for _, fe := range ve {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag()})
	}
	return out
}
