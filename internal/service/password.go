package service

import (
	"unicode/utf8"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

const (
	minPasswordLength = 8
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
)

// ValidatePassword requires at least eight characters drawn from at least
// three of: ASCII digits, ASCII lowercase, ASCII uppercase, anything else.
func ValidatePassword(pw string) error {
	if len(pw) > maxPasswordBytes {
		return domain.ErrPasswordTooLong
	}
	if utf8.RuneCountInString(pw) < minPasswordLength {
		return domain.ErrWeakPassword
	}

	var digit, lower, upper, special bool
	for _, r := range pw {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		default:
			special = true
		}
	}

	classes := 0
	for _, ok := range []bool{digit, lower, upper, special} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return domain.ErrWeakPassword
	}
	return nil
}
