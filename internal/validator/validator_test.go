package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhone(t *testing.T) {
	for _, phone := range []string{"+265991234567", "0991234567", "0881234567", "+265111234567"} {
		assert.NoErrorf(t, ValidatePhone(phone), "phone %q", phone)
	}
	for _, phone := range []string{"", "991234567", "+1555123456", "+2650123", "099123456789012"} {
		assert.ErrorIsf(t, ValidatePhone(phone), ErrInvalidPhone, "phone %q", phone)
	}
}

func TestValidateUsername(t *testing.T) {
	for _, name := range []string{"chikondi", "mudzi_123", "abc"} {
		assert.NoErrorf(t, ValidateUsername(name), "username %q", name)
	}
	for _, name := range []string{"", "ab", "has space", "bad!char", "waytoolongusernamethatkeepsgoingandgoing"} {
		assert.ErrorIsf(t, ValidateUsername(name), ErrInvalidUsername, "username %q", name)
	}
}

func TestValidatePIN(t *testing.T) {
	for _, pin := range []string{"1234", "123456"} {
		assert.NoErrorf(t, ValidatePIN(pin), "pin %q", pin)
	}
	for _, pin := range []string{"", "123", "1234567", "12ab"} {
		assert.ErrorIsf(t, ValidatePIN(pin), ErrInvalidPIN, "pin %q", pin)
	}
}
