package validators

import (
	"errors"
	"unicode"
)

const MinPasswordLength = 8

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordInvalid  = errors.New("password contains invalid characters")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordEmpty    = errors.New("no password provided")
)

// PasswordShape only rejects passwords that can't be hashed faithfully. It
// has no strength policy, see PasswordValidator for that.
func PasswordShape(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	// bcrypt ignores anything past 72 bytes
	if len(p) > 72 {
		return ErrPasswordTooLong
	}

	for _, r := range p {
		if unicode.IsControl(r) {
			return ErrPasswordInvalid
		}
	}

	return nil
}

// PasswordValidator is PasswordShape plus the length policy applied to
// passwords chosen through the public endpoints
func PasswordValidator(p string) error {
	if err := PasswordShape(p); err != nil {
		return err
	}

	if len(p) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	return nil
}
