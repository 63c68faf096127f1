package outbox

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidConfig  = errors.New("invalid outbox configuration")
	ErrInvalidMessage = errors.New("invalid outbox message")
	ErrUnknownTopic   = errors.New("no dispatcher registered for topic")
)

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}

// ParseTable reads a table setting written as "statunit_outbox" or
// "public.statunit_outbox".
func ParseTable(name string) (pgx.Identifier, error) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if name == "" || len(parts) > 2 {
		return nil, invalidConfig("outbox table %q", name)
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if !tableNameRe.MatchString(parts[i]) {
			return nil, invalidConfig("outbox table %q", name)
		}
	}
	return pgx.Identifier(parts), nil
}

func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}

// lastError renders err for the last_error column, cut to maxBytes on a rune
// boundary.
func lastError(err error, maxBytes int) string {
	if err == nil || maxBytes <= 0 {
		return ""
	}
	s := err.Error()
	if len(s) <= maxBytes {
		return s
	}
	s = s[:maxBytes]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
