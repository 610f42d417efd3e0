// backend/src/security/validation/field_validator.go
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
)

var ErrValidationFailed = errors.New("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxCurrencyCodeLength  = 3
	MaxDescriptionLength   = 1024
	MaxIconLength          = 64
	MaxReceiptRefLength    = 2048
	MaxAmountDecimals      = 4
)

// MaxAmount caps any single monetary value accepted at the boundary.
var MaxAmount = decimal.New(1, 12)

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	colorRegex        = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	iconRegex         = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks the UTF-8 character count.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// ValidateIntString parses an optional integer and checks its range. An empty
// string yields 0.
func ValidateIntString(s, fieldName string, minVal, maxVal int) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid integer", ErrValidationFailed, fieldName, s)
	}
	if val < minVal || val > maxVal {
		logger.L.Warn("Integer value out of range", "field", fieldName, "value", val, "min", minVal, "max", maxVal)
		return 0, fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return val, nil
}

// ParseAmount parses a decimal string. Scientific notation is rejected, as
// are values with more than MaxAmountDecimals places or beyond MaxAmount.
func ParseAmount(s, fieldName string, allowNegative bool) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return decimal.Zero, err
	}
	if strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %s ('%s') must be a plain decimal number", ErrValidationFailed, fieldName, s)
	}
	val, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s ('%s') is not a valid amount: %v", ErrValidationFailed, fieldName, s, err)
	}
	if !allowNegative && val.IsNegative() {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val.String())
		return decimal.Zero, fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if val.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds %s", ErrValidationFailed, fieldName, MaxAmount.String())
	}
	if -val.Exponent() > MaxAmountDecimals {
		return decimal.Zero, fmt.Errorf("%w: %s allows at most %d decimal places", ErrValidationFailed, fieldName, MaxAmountDecimals)
	}
	return val, nil
}

// ParseDate accepts "YYYY-MM-DD" (read as midnight UTC) or an RFC 3339 timestamp.
func ParseDate(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := models.ParseTime(trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD or RFC 3339)", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}

// ParseOptionalDate is ParseDate for filters, where an empty value means absent.
func ParseOptionalDate(s, fieldName string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s, fieldName)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ValidateCurrencyCode normalises to upper case and checks for three letters.
func ValidateCurrencyCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if err := ValidateStringNotEmpty(code, "Currency"); err != nil {
		return "", err
	}
	if err := ValidateStringMaxLength(code, MaxCurrencyCodeLength, "Currency"); err != nil {
		return "", err
	}
	if err := ValidateStringRegex(code, currencyCodeRegex, "Currency", "3 letters"); err != nil {
		return "", err
	}
	return code, nil
}

func ValidateTransactionType(s string) (models.TransactionType, error) {
	t := models.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: type ('%s') must be income or expense", ErrValidationFailed, s)
	}
	return t, nil
}

// ValidateColor checks a "#RRGGBB" color token.
func ValidateColor(s string) error {
	return ValidateStringRegex(strings.TrimSpace(s), colorRegex, "Color", "#RRGGBB")
}

func ValidateIcon(s string) error {
	if err := ValidateStringMaxLength(s, MaxIconLength, "Icon"); err != nil {
		return err
	}
	return ValidateStringRegex(s, iconRegex, "Icon", "lowercase letters, digits and hyphens")
}

// ValidateID checks an opaque identifier taken from a path or payload.
func ValidateID(s, fieldName string) error {
	if err := ValidateStringNotEmpty(s, fieldName); err != nil {
		return err
	}
	return ValidateStringMaxLength(s, DefaultMaxStringLength, fieldName)
}

// ValidateLabel cleans a required name-like field and checks its length.
func ValidateLabel(s, fieldName string) (string, error) {
	cleaned := CleanText(s)
	if err := ValidateStringNotEmpty(cleaned, fieldName); err != nil {
		return "", err
	}
	if err := ValidateStringMaxLength(cleaned, DefaultMaxStringLength, fieldName); err != nil {
		return "", err
	}
	return cleaned, nil
}
