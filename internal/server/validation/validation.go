// Package validation checks request payloads before they reach storage.
// Every failing field is reported; a field yields at most one error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error types reported in FieldError.Type.
const (
	TypeMissing  = "missing"
	TypeTooShort = "string_too_short"
	TypeValue    = "value_error"
)

const (
	msgMissing      = "Field required"
	msgInvalidEmail = "value is not a valid email address"
	msgMismatch     = "Passwords do not match"
)

// FieldError describes one failing field. Loc is the path of the field in
// the JSON payload.
type FieldError struct {
	Input any      `json:"input"`
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Type  string   `json:"type"`
}

// Errors is the collected set of failures for one payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, strings.Join(fe.Loc, ".")+": "+fe.Msg)
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// LoginPayload is the body of POST /auth/login.
type LoginPayload struct {
	Email    *string `json:"email" validate:"required,email"`
	Password *string `json:"password" validate:"required,min=8"`
}

// SignupPayload is the body of POST /user/create.
type SignupPayload struct {
	Email                *string `json:"email" validate:"required,email"`
	Password             *string `json:"password" validate:"required,min=8"`
	PasswordConfirmation *string `json:"password_confirmation" validate:"required,min=8,eqfield=Password"`
}

// PasswordUpdatePayload is the body of PATCH /user/password/update.
type PasswordUpdatePayload struct {
	Password             *string `json:"password" validate:"required,min=8"`
	PasswordConfirmation *string `json:"password_confirmation" validate:"required,min=8,eqfield=Password"`
	PreviousPassword     *string `json:"previous_password" validate:"required,min=8"`
}

// Validator wraps a configured validator.Validate. It is safe for
// concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator reporting fields by their json names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns nil or Errors listing every failing field in declaration
// order.
func (v *Validator) Validate(payload any) error {
	err := v.v.Struct(payload)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	out := make(Errors, 0, len(ves))
	for _, fe := range ves {
		out = append(out, toFieldError(fe))
	}
	return out
}

// Str dereferences an optional payload field.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func toFieldError(fe validator.FieldError) FieldError {
	out := FieldError{
		Input: fe.Value(),
		Loc:   []string{fe.Field()},
		Type:  TypeValue,
	}
	switch fe.Tag() {
	case "required":
		out.Input = nil
		out.Type = TypeMissing
		out.Msg = msgMissing
	case "min":
		out.Type = TypeTooShort
		out.Msg = fmt.Sprintf("String should have at least %s characters", fe.Param())
	case "email":
		out.Msg = msgInvalidEmail
	case "eqfield":
		out.Msg = msgMismatch
	default:
		out.Msg = fmt.Sprintf("failed on %s", fe.Tag())
	}
	return out
}
