// v1
// internal/cache/keys.go
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// CodesKey builds the cache key for a rule-table lookup so that code system
// names differing only by case or padding share an entry.
func CodesKey(codeSystem string) string {
	return makeKey("codes", CanonicalSystem(codeSystem))
}

// SystemsKey is the cache key for the list of available code systems.
func SystemsKey() string {
	return makeKey("systems")
}

// CanonicalSystem normalizes a code system identifier, e.g. " nbc_2025 "
// becomes "NBC_2025".
func CanonicalSystem(codeSystem string) string {
	return strings.ToUpper(strings.TrimSpace(codeSystem))
}

func makeKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	h := sha1.Sum([]byte(joined))
	return hex.EncodeToString(h[:])
}
