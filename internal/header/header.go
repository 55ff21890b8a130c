// Package header converts between raw wire header text and ordered
// field/value entries.
package header

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpguts"
)

const (
	// MaxFieldLen and MaxValueLen bound a parsed entry; longer text is truncated.
	MaxFieldLen = 1024
	MaxValueLen = 64 * 1024
)

var lineRE = regexp.MustCompile(`^(\S+): ?(\S.*)$`)

// Entry is one header line.
type Entry struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Parse splits raw header text into entries. Carriage returns are dropped
// first; lines that do not look like "Field: Value" are skipped. When the
// text spans several header blocks (redirects) every block is kept.
func Parse(raw string) []Entry {
	raw = strings.ReplaceAll(raw, "\r", "")

	var entries []Entry
	for _, line := range strings.Split(raw, "\n") {
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, Entry{
			Field: truncate(m[1], MaxFieldLen),
			Value: truncate(m[2], MaxValueLen),
		})
	}
	return entries
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ConnectionValue returns the Connection header value for a keep-alive policy.
func ConnectionValue(keepAlive bool) string {
	if keepAlive {
		return "Keep-Alive"
	}
	return "close"
}

// ToWire prepares caller entries for transmission. The Connection and
// Charsets headers always come first. Entries with an empty field, a
// Content-Type field, or text that is not legal on the wire are dropped
// with a warning.
func ToWire(entries []Entry, keepAlive bool) []Entry {
	wire := make([]Entry, 0, len(entries)+2)
	wire = append(wire,
		Entry{Field: "Connection", Value: ConnectionValue(keepAlive)},
		Entry{Field: "Charsets", Value: "utf-8"},
	)

	for _, e := range entries {
		switch {
		case e.Field == "":
			log.Warn().Msg("header with empty field name skipped")
		case strings.EqualFold(e.Field, "Content-Type"):
			log.Warn().
				Str("field", e.Field).
				Msg("Content-Type must be set through the request content_type, header skipped")
		case !httpguts.ValidHeaderFieldName(e.Field):
			log.Warn().Str("field", e.Field).Msg("invalid header field name skipped")
		case !httpguts.ValidHeaderFieldValue(e.Value):
			log.Warn().Str("field", e.Field).Msg("invalid header field value skipped")
		default:
			wire = append(wire, e)
		}
	}
	return wire
}
