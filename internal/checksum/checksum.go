// Package checksum computes content digests and their HTTP entity-tag forms.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes sum as a strong entity tag. An empty sum yields "".
func ETag(sum string) string {
	if sum == "" {
		return ""
	}
	return `"` + sum + `"`
}

// FromTag strips the quotes and weak prefix of an entity tag, so both
// `"abc"` and `W/"abc"` yield abc. Bare digests pass through.
func FromTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`)
}

// Matches reports whether the If-Match or If-None-Match header value
// names sum. "*" matches any existing content.
func Matches(header, sum string) bool {
	if sum == "" {
		return false
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" || FromTag(part) == sum {
			return true
		}
	}
	return false
}
