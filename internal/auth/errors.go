package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/contentapi"
)

// FieldError is a form-level failure: Field names the input it belongs
// to, empty for the form as a whole. Err is apperr.ErrValidation for
// problems found locally, or the content API error otherwise.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func invalid(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message, Err: apperr.ErrValidation}
}

// rejected turns a 4xx answer of the content API into a FieldError,
// preferring the message the API sent. Any other failure is returned
// wrapped, so it is not reported as bad input.
func rejected(op, field, fallback string, err error) error {
	var apiErr *contentapi.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode < 400 || apiErr.StatusCode > 499 {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := fallback
	if apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &FieldError{Field: field, Message: msg, Err: err}
}

const (
	minPasswordLen = 5
	maxPasswordLen = 30
	minUsernameLen = 2
	maxUsernameLen = 30
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateLogin(identifier, password string) error {
	if strings.TrimSpace(identifier) == "" {
		return invalid("identifier", "Enter a name")
	}
	if password == "" {
		return invalid("password", "Enter a password")
	}
	return nil
}

func validateRegister(username, email, password string) error {
	switch n := len([]rune(username)); {
	case n == 0:
		return invalid("username", "Enter a name")
	case n < minUsernameLen:
		return invalid("username", "Minimum of 2 characters")
	case n > maxUsernameLen:
		return invalid("username", "Maximum of 30 characters")
	}
	if email == "" {
		return invalid("email", "Enter your email address")
	}
	if !emailRe.MatchString(email) {
		return invalid("email", "Enter the correct email address")
	}
	return validatePassword("password", password)
}

func validatePassword(field, password string) error {
	switch n := len([]rune(password)); {
	case n == 0:
		return invalid(field, "Enter a password")
	case n < minPasswordLen:
		return invalid(field, "Minimum of 5 characters")
	case n > maxPasswordLen:
		return invalid(field, "Maximum of 30 characters")
	}
	return nil
}

func validateChange(current, password, confirmation string) error {
	if current == "" {
		return invalid("currentPassword", "Enter current password")
	}
	if err := validatePassword("password", password); err != nil {
		return err
	}
	if password == current {
		return invalid("password", "Your new password must be different than your current password")
	}
	if confirmation != password {
		return invalid("passwordConfirmation", "Passwords do not match")
	}
	return nil
}
