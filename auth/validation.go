package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storerate/apperr"
)

// PasswordSpecials is the set of characters that satisfy the special
// character requirement. No other punctuation is accepted in passwords.
const PasswordSpecials = "!@#$%^&*"

const passwordMessage = "Password must be 8-16 chars, include 1 uppercase & 1 special character."

const nulMessage = "%s must not contain NUL characters."

var userFieldMessages = map[string]string{
	"name":     "Name must be between 20 and 60 characters.",
	"email":    "Invalid email address.",
	"password": passwordMessage,
	"address":  "Address cannot exceed 400 characters.",
	"role":     "Role must be one of Normal User, Store Owner, System Administrator.",
}

// NewValidator returns a validator that reports fields by their JSON names
// and knows the "password", "role" and "nonul" rules.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return Role(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !HasNUL(fl.Field().String())
	})
	return v
}

// ValidPassword reports whether pw is 8-16 characters drawn from letters,
// digits and PasswordSpecials, with at least one uppercase letter and one
// special character. Lowercase letters and digits are optional.
func ValidPassword(pw string) bool {
	if len(pw) < 8 || len(pw) > 16 {
		return false
	}

	var upper, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return upper && special
}

// HasNUL reports whether s contains a NUL byte, which PostgreSQL text
// columns cannot store.
func HasNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// FieldErrors converts validator output into an apperr validation error that
// lists every rejected field. messages maps JSON field names to the text
// shown to the caller.
func FieldErrors(err error, messages map[string]string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()]
		if fe.Tag() == "nonul" {
			msg, ok = fmt.Sprintf(nulMessage, fe.Field()), true
		}
		if !ok {
			msg = fmt.Sprintf("%s is invalid.", fe.Field())
		}
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: msg})
	}
	return apperr.Validation(fields...)
}
