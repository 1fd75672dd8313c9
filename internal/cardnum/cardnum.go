// Package cardnum validates and masks the 16-digit card numbers the
// ledger accepts. Numbers are client-supplied, so validation happens at
// every write boundary, not just in handlers.
package cardnum

import "strings"

const panLen = 16

// Normalize strips spaces and dashes so "4111 1111 1111 1111" and
// "4111-1111-1111-1111" compare equal to the compact form.
func Normalize(pan string) string {
	var sb strings.Builder
	sb.Grow(len(pan))
	for _, r := range pan {
		if r == ' ' || r == '-' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Valid reports whether pan is exactly 16 numeric digits after
// normalization.
func Valid(pan string) bool {
	pan = Normalize(pan)
	return len(pan) == panLen && IsDigits(pan)
}

func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LastN returns the trailing n characters of s, or s itself when shorter.
func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
