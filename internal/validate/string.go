// Package validate provides input validation for prediction requests.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation errors.
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
	ErrNotANumber        = errors.New("value is not a number")
	ErrNotPositive       = errors.New("value must be positive")
	ErrNotInteger        = errors.New("value must be a whole number")
	ErrOutOfRange        = errors.New("value is too large")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength         int            // Minimum length in runes (0 = no minimum)
	MaxLength         int            // Maximum length in runes (0 = no maximum)
	AllowedPattern    *regexp.Regexp // Optional regex the whole string must match
	AllowEmpty        bool
	TrimSpace         bool
	RejectControlChar bool // Reject control characters such as NUL or newlines
}

// String validates s against the constraints and returns it, trimmed when
// TrimSpace is set.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.RejectControlChar && strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidCharacters)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// BranchName validates a branch of study. Branch names are matched exactly
// against the dataset, so the value is returned unmodified:
// - Required (not empty)
// - Max 200 characters
// - No control characters
func BranchName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:         1,
		MaxLength:         200,
		AllowEmpty:        false,
		TrimSpace:         false,
		RejectControlChar: true,
	})
}

// PositiveInteger parses a rank-like value from its textual form. Leading
// and trailing spaces are ignored; "5000", "5000.0" and "5e3" are accepted,
// "5000.5", "0", "-5", "NaN" and "Inf" are not.
func PositiveInteger(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%w: got %s", ErrNotPositive, s)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: got %s, maximum is %d", ErrOutOfRange, s, math.MaxInt32)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: got %s", ErrNotInteger, s)
	}
	return int(f), nil
}
