package identity

import (
	"errors"
	"fmt"
)

const (
	MinAccountIDLen = 2
	MaxAccountIDLen = 64
)

var ErrInvalidAccountID = errors.New("invalid account id")

// ValidateAccountID checks the host naming rules: 2 to 64 characters of
// lowercase letters, digits and the separators '-', '_' and '.', with no
// separator at either end and no two separators in a row.
func ValidateAccountID(id string) error {
	if len(id) < MinAccountIDLen || len(id) > MaxAccountIDLen {
		return fmt.Errorf("%w: %q must be %d-%d characters", ErrInvalidAccountID, id, MinAccountIDLen, MaxAccountIDLen)
	}

	prevSeparator := true // leading separator is rejected
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSeparator = false
		case c == '-' || c == '_' || c == '.':
			if prevSeparator {
				return fmt.Errorf("%w: %q has a misplaced separator at %d", ErrInvalidAccountID, id, i)
			}
			prevSeparator = true
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidAccountID, id, c)
		}
	}

	if prevSeparator {
		return fmt.Errorf("%w: %q ends with a separator", ErrInvalidAccountID, id)
	}

	return nil
}
