package validator

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPIN      = errors.New("PIN must be 4 to 6 digits")
)

var (
	// Malawi numbers: +265 or local 0 prefix followed by 8-9 digits.
	phoneRegex    = regexp.MustCompile(`^(\+265|0)[1-9]\d{7,8}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	pinRegex      = regexp.MustCompile(`^\d{4,6}$`)
)

func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePIN(pin string) error {
	if !pinRegex.MatchString(pin) {
		return ErrInvalidPIN
	}
	return nil
}
