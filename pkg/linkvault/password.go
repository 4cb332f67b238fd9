package linkvault

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input beyond this length, so longer passwords are rejected.
const maxPasswordBytes = 72

func hashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", invalidInput("password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword evaluates the password gate for a record.
func checkPassword(record *Record, supplied string) error {
	if !record.HasPassword() {
		return nil
	}
	if supplied == "" {
		return ErrPasswordRequired
	}
	err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(supplied))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	if err != nil {
		// a malformed stored hash can never be satisfied
		return ErrPasswordMismatch
	}
	return nil
}
