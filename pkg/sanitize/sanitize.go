package sanitize

import (
	"regexp"
	"strings"
)

// Plain email (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +54 9 11 ..., (011) 4555-1234, 11-5555-5555, etc.
// Only digits, spaces, dashes, dots, parentheses and plus are allowed, and at
// least 9 characters overall.
var rePhone = regexp.MustCompile(`\+?\(?\d[\d\s\-\.()]{7,}\d`)

// Shapes a phone candidate may contain that are not phones: calendar dates
// (2025-06-12, 12/06/2025, 12.06.2025) and number-year dockets (12345-2024).
var reNotPhone = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{4}|^\d+[-/](19|20)\d{2}$`)

// RedactPII masks emails and phone numbers before text leaves the server.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllStringFunc(s, func(m string) string {
		if reNotPhone.MatchString(strings.TrimSpace(m)) {
			return m
		}
		return "[redacted phone]"
	})
	return s
}

// Summary cuts s at a word boundary no longer than max bytes.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return s[:i] + "…"
}
