package switchboard

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUnixMilli returns the current time as Unix milliseconds. All stored
// message timestamps come from this single clock source.
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// DeriveAgentID derives a stable agent id from a human-readable name:
// Unicode-decompose so accented letters survive as their ASCII base, drop
// every rune outside [A-Za-z], whitespace, and '-', collapse whitespace runs
// to a single hyphen, and lowercase. The derivation is idempotent.
func DeriveAgentID(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.ToLower(strings.Join(strings.Fields(b.String()), "-"))
}
