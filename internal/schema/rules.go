package schema

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Rule is a named validation predicate.  Check receives the coerced value
// (string, int64, float64 or bool) and returns an error whose message is
// appended to the field name, e.g. "name must not be empty".
type Rule struct {
	Name  string
	Check func(v any) error
}

// NotEmpty rejects blank strings.
func NotEmpty() Rule {
	return Rule{Name: "not_empty", Check: func(v any) error {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return errors.New("must not be empty")
		}
		return nil
	}}
}

// IsEmail requires a bare RFC 5322 address such as "john.doe@example.com".
func IsEmail() Rule {
	return Rule{Name: "is_email", Check: func(v any) error {
		s, _ := v.(string)
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s || addr.Name != "" {
			return errors.New("must be a valid email")
		}
		return nil
	}}
}

// Len bounds the length of a string in characters.
func Len(min, max int) Rule {
	return Rule{Name: "len", Check: func(v any) error {
		s, _ := v.(string)
		if n := utf8.RuneCountInString(s); n < min || n > max {
			return fmt.Errorf("must be between %d and %d characters", min, max)
		}
		return nil
	}}
}

// MaxBytes bounds the encoded length of a string, for consumers that
// count bytes rather than characters (bcrypt stops at 72).
func MaxBytes(n int) Rule {
	return Rule{Name: "max_bytes", Check: func(v any) error {
		if s, _ := v.(string); len(s) > n {
			return fmt.Errorf("must be at most %d bytes", n)
		}
		return nil
	}}
}

// Digits requires a string made of min..max ASCII digits (phone numbers).
func Digits(min, max int) Rule {
	return Rule{Name: "digits", Check: func(v any) error {
		s, _ := v.(string)
		if len(s) < min || len(s) > max {
			return fmt.Errorf("must have between %d and %d digits", min, max)
		}
		for i := 0; i < len(s); i++ {
			if s[i] < '0' || s[i] > '9' {
				return errors.New("must contain digits only")
			}
		}
		return nil
	}}
}

// Min rejects numbers below n.
func Min(n float64) Rule {
	return Rule{Name: "min", Check: func(v any) error {
		if f, ok := asFloat(v); ok && f < n {
			return fmt.Errorf("must be at least %g", n)
		}
		return nil
	}}
}

// Range rejects numbers outside [lo, hi].
func Range(lo, hi float64) Rule {
	return Rule{Name: "range", Check: func(v any) error {
		if f, ok := asFloat(v); ok && (f < lo || f > hi) {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
