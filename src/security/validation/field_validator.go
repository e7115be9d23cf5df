// backend/src/security/validation/field_validator.go
package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/username/tradejournal/backend/src/models"
)

var ErrValidationFailed = errors.New("validation failed")

const (
	MaxSymbolLength    = 32
	MaxTicketLength    = 64
	MaxCommentLength   = 1024
	MaxAccountIDLength = 64
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	brokerKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9 ._-]+$`)
)

// ValidateAccountID checks the identifier callers attach imported trades to.
func ValidateAccountID(s string) error {
	if err := ValidateStringNotEmpty(s, "account ID"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(s, MaxAccountIDLength, "account ID"); err != nil {
		return err
	}
	return ValidateStringRegex(s, accountIDRegex, "account ID", "letters, digits, hyphens and underscores")
}

// ValidateBrokerKey checks a broker key supplied by a client.
func ValidateBrokerKey(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "broker"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxTicketLength, "broker"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, brokerKeyRegex, "broker", "letters, digits, spaces, dots, hyphens and underscores")
}

// ValidateTrade checks a normalized trade before it leaves the import
// pipeline. Field values are broker data and only their shape is checked.
func ValidateTrade(t models.NormalizedTrade) error {
	if err := ValidateStringNotEmpty(t.Symbol, "symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(t.Symbol, MaxSymbolLength, "symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(t.Ticket, MaxTicketLength, "ticket"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(t.Comment, MaxCommentLength, "comment"); err != nil {
		return err
	}
	if t.Direction != models.DirectionBuy && t.Direction != models.DirectionSell {
		return fmt.Errorf("%w: direction %q is neither buy nor sell", ErrValidationFailed, t.Direction)
	}
	if t.Volume < 0 {
		return fmt.Errorf("%w: volume cannot be negative", ErrValidationFailed)
	}
	for name, v := range map[string]float64{
		"volume": t.Volume, "open price": t.OpenPrice, "close price": t.ClosePrice,
		"pnl": t.PnL, "commission": t.Commission, "swap": t.Swap,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrValidationFailed, name)
		}
	}
	return nil
}
