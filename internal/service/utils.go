package service

import (
	"strings"
	"unicode/utf8"
)

// sanitizeUTF8 strips invalid byte sequences from model output before it
// reaches PostgreSQL, which rejects malformed UTF-8 text values.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
