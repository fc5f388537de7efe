// Package token picks the bearer credential to present to the vendor from an
// ordered list of candidate sources.
package token

import (
	"strings"
	"unicode"
)

// Resolve returns the first usable credential among the candidates, normalised
// to the "Bearer <token>" form the vendor expects. Blank candidates are
// skipped. The second return value is false when no candidate yields a value;
// callers must treat that as an authorization failure.
//
// Precedence is positional and decided per call site: the redemption flow
// passes (code token, query token, configured token); the direct checkout flow
// passes (query/body token, Authorization header).
func Resolve(candidates ...string) (string, bool) {
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		return normalise(trimmed), true
	}
	return "", false
}

// normalise prepends "Bearer " unless the value already carries the prefix
// (case-insensitive) followed by whitespace.
func normalise(value string) string {
	const prefix = "bearer"
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		if unicode.IsSpace(rune(value[len(prefix)])) {
			return value
		}
	}
	return "Bearer " + value
}
