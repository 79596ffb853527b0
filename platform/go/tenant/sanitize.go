package tenant

import (
	"errors"
	"fmt"
	"strings"
)

// maxDatabaseNameLen matches the PostgreSQL identifier limit.
const maxDatabaseNameLen = 63

// ErrSanitizationRejected is returned when a raw database name cannot be
// reduced to a usable identifier. Callers must treat this as permanent and
// must never attempt a connection with the raw value.
var ErrSanitizationRejected = errors.New("database name rejected by sanitizer")

// SanitizeDatabaseName reduces a raw, possibly attacker-influenced database
// name to the whitelist form used for connection targets and cache keys:
// lower-cased, with every rune outside [a-z0-9_-] replaced by an underscore.
// The sanitized form is the only value the connection layer ever sees.
func SanitizeDatabaseName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty name", ErrSanitizationRejected)
	}
	if len(trimmed) > maxDatabaseNameLen {
		return "", fmt.Errorf("%w: %q exceeds %d characters", ErrSanitizationRejected, raw, maxDatabaseNameLen)
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	kept := 0
	for _, r := range strings.ToLower(trimmed) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			kept++
		case r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	// A name consisting only of separators carries no identity.
	if kept == 0 {
		return "", fmt.Errorf("%w: %q has no identifier characters", ErrSanitizationRejected, raw)
	}

	return b.String(), nil
}
