package util

import (
	"net/url"
	"strings"
)

// MaskSecret obscures a secret for logging, showing only the first and last few characters.
func MaskSecret(secret string) string {
	if len(secret) > 8 {
		return secret[:4] + "..." + secret[len(secret)-4:]
	} else if len(secret) > 4 {
		return secret[:2] + "..." + secret[len(secret)-2:]
	} else if len(secret) > 2 {
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}

// MaskPhone keeps the last three digits of a phone number.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}

// RedactDSN hides the password of URL-style DSNs and password= pairs of
// key/value DSNs.
func RedactDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.Contains(trimmed, "://") {
		if parsed, err := url.Parse(trimmed); err == nil && parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
			}
			return parsed.String()
		}
		return trimmed
	}
	fields := strings.Fields(trimmed)
	changed := false
	for i, field := range fields {
		if strings.HasPrefix(strings.ToLower(field), "password=") {
			fields[i] = field[:len("password=")] + MaskSecret(field[len("password="):])
			changed = true
		}
	}
	if !changed {
		return trimmed
	}
	return strings.Join(fields, " ")
}
