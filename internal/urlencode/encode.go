// Package urlencode percent-encodes text and flattens key/value objects
// into application/x-www-form-urlencoded bodies.
package urlencode

import (
	"strconv"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const upperhex = "0123456789ABCDEF"

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// Encode maps space to '+', keeps unreserved bytes and writes every other
// byte as %XX. Encoding stops at the first NUL byte.
func Encode(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case unreserved(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

// EncodeMap flattens the top-level entries of a JSON object into
// key=value pairs joined by '&', in encounter order. Entries with an empty
// key or a composite value are skipped. The boolean result is false when
// no pair was written.
func EncodeMap(data string) (string, bool, error) {
	if !gjson.Valid(data) {
		return "", false, errors.New(errors.ErrorTypeInvalidInput, "argument is not valid JSON").
			WithContext("field", "data")
	}
	obj := gjson.Parse(data)
	if !obj.IsObject() {
		return "", false, errors.New(errors.ErrorTypeInvalidInput, "argument must be a key/value object").
			WithContext("field", "data")
	}

	var b strings.Builder
	count := 0
	obj.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if k == "" {
			return true
		}
		v, ok := scalarText(value)
		if !ok {
			log.Warn().
				Str("key", k).
				Str("kind", value.Type.String()).
				Msg("skipping composite value in url-encoded map")
			return true
		}
		if count > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Encode(k))
		b.WriteByte('=')
		b.WriteString(Encode(v))
		count++
		return true
	})

	if count == 0 {
		return "", false, nil
	}
	return b.String(), true, nil
}

func scalarText(value gjson.Result) (string, bool) {
	switch value.Type {
	case gjson.String:
		return value.Str, true
	case gjson.Number:
		return formatNumber(value), true
	case gjson.True:
		return "true", true
	case gjson.False:
		return "false", true
	case gjson.Null:
		return "", true
	default:
		return "", false
	}
}

// formatNumber keeps integer literals exact and renders everything else as
// the shortest decimal that round-trips.
func formatNumber(value gjson.Result) string {
	if i, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return strconv.FormatFloat(value.Num, 'f', -1, 64)
}
