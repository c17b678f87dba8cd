package service

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"wisefido-casebook/internal/auth"
	"wisefido-casebook/internal/domain"
)

// 字段长度上限（按字符计，trim 之后）
const (
	maxNameLen     = 100
	maxClinicLen   = 200
	maxLongText    = 5000
	maxShortText   = 2000
	maxNotesText   = 10000
	minPasswordLen = 8
)

// normalizeEmail trims and lower-cases; the address must be bare (no display name).
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", false
	}
	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", false
	}
	return email, true
}

// coerceConsent accepts JSON true or the string "true". Everything else is refused.
func coerceConsent(v any) bool {
	switch c := v.(type) {
	case bool:
		return c
	case string:
		return c == "true"
	default:
		return false
	}
}

// parseSessionDate accepts RFC 3339 or a bare YYYY-MM-DD (UTC midnight).
func parseSessionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// textField trims an optional field and checks its length. Returns nil when absent.
func textField(v *domain.ValidationError, field string, raw *string, max int) *string {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if utf8.RuneCountInString(s) > max {
		v.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return &s
}

// nameField like textField but a present value must not be blank.
func nameField(v *domain.ValidationError, field string, raw *string, max int) *string {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	n := utf8.RuneCountInString(s)
	if n < 1 || n > max {
		v.Add(field, fmt.Sprintf("must be between 1 and %d characters", max))
	}
	return &s
}

func validatePassword(v *domain.ValidationError, password string) {
	switch {
	case utf8.RuneCountInString(password) < minPasswordLen:
		v.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	case len(password) > auth.MaxPasswordBytes:
		v.Add("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}
}
