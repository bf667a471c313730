package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPinFormat = errors.New("pin must be exactly 6 digits")

// ValidatePinFormat ensures a transfer PIN is exactly six ASCII digits.
func ValidatePinFormat(pin string) error {
	if len(pin) != 6 {
		return ErrInvalidPinFormat
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPinFormat
		}
	}
	return nil
}

// HashPin stores the transfer PIN the same way passwords are stored:
// salted bcrypt, never recoverable.
func HashPin(pin string) (string, error) {
	if err := ValidatePinFormat(pin); err != nil {
		return "", err
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func CheckPin(hashedPin, plainPin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPin), []byte(plainPin)) == nil
}
