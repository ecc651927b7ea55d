// ABOUTME: Small string/path helpers reused by the summary writer and the recovery-state paths
// ABOUTME: Kept stdlib-only; none of this needs a third-party dependency

package util

import (
	"strconv"
	"strings"
)

// SanitizeFilename strips characters unsafe for use in a lock or summary
// filename, replacing runs of them with a single underscore.
func SanitizeFilename(name string) string {
	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range name {
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-'
		if safe {
			b.WriteRune(r)
			lastWasUnderscore = false
			continue
		}
		if !lastWasUnderscore {
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	return b.String()
}

// SanitizeTSVField escapes a value for inclusion in a tab-separated summary
// row: tabs, newlines, and carriage returns are replaced with spaces so the
// row stays on one line. A CRLF pair counts as one line break and becomes a
// single space.
func SanitizeTSVField(value string) string {
	replacer := strings.NewReplacer("\r\n", " ", "\t", " ", "\n", " ", "\r", " ")
	return replacer.Replace(value)
}

// ParseIntDefault parses s as an int, returning def on any error or empty input.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// IsTruthy follows the common convention for boolean-ish string
// values: "", "false", "0", "no", and "off" (case-insensitive) are false,
// anything else is true.
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
