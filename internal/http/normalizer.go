package http

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	"github.com/rs/zerolog"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// ResponseNormalizer turns the buffers of a finished transaction into a
// structured Response
type ResponseNormalizer struct {
	logger zerolog.Logger
}

// NewResponseNormalizer creates a new response normalizer
func NewResponseNormalizer(logger zerolog.Logger) *ResponseNormalizer {
	return &ResponseNormalizer{
		logger: logger.With().Str("component", "response_normalizer").Logger(),
	}
}

// Normalize assembles the response record. Empty header text leaves
// Headers nil and an empty body leaves Content nil. A body whose
// content type names a charset is transcoded to UTF-8.
func (n *ResponseNormalizer) Normalize(status int, contentType *string, rawHeaders, body []byte) (*Response, error) {
	resp := &Response{
		Status:      status,
		ContentType: contentType,
	}

	if len(rawHeaders) > 0 {
		resp.Headers = header.Parse(string(rawHeaders))
		if resp.Headers == nil {
			resp.Headers = []header.Entry{}
		}
	}

	if len(body) == 0 {
		return resp, nil
	}

	charset := ""
	if contentType != nil {
		charset = DetectCharset(*contentType)
	}
	if charset == "" {
		resp.Content = body
		return resp, nil
	}

	content, err := n.transcode(body, charset)
	if err != nil {
		return nil, err
	}
	resp.Content = content
	return resp, nil
}

// DetectCharset returns the charset parameter of a content type, matched
// case-insensitively, or "" when there is none.
func DetectCharset(contentType string) string {
	params := strings.Split(contentType, ";")
	for _, p := range params[1:] {
		p = strings.TrimSpace(p)
		if len(p) < len("charset=") || !strings.EqualFold(p[:len("charset=")], "charset=") {
			continue
		}
		v := strings.TrimSpace(p[len("charset="):])
		return strings.Trim(v, `"'`)
	}
	return ""
}

func isUTF8(charset string) bool {
	c := strings.ToLower(charset)
	return c == "utf-8" || c == "utf8"
}

// lookupEncoding resolves a charset label, trying IANA MIME names first and
// WHATWG labels second. IANA keeps iso-8859-1 distinct from windows-1252.
func lookupEncoding(charset string) encoding.Encoding {
	if enc, err := ianaindex.MIME.Encoding(charset); err == nil && enc != nil {
		return enc
	}
	if enc, _ := htmlcharset.Lookup(charset); enc != nil {
		return enc
	}
	return nil
}

// Transcode converts body from charset to UTF-8. Bytes that are not valid
// in charset are an error.
func Transcode(body []byte, charset string) ([]byte, error) {
	if isUTF8(charset) {
		if !utf8.Valid(body) {
			return nil, errors.New(errors.ErrorTypeTranscoding, "invalid byte sequence for encoding").
				WithContext("charset", charset)
		}
		return body, nil
	}

	enc := lookupEncoding(charset)
	if enc == nil {
		return nil, errors.New(errors.ErrorTypeTranscoding, "unsupported charset").
			WithContext("charset", charset)
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTranscoding, "failed to transcode response body").
			WithContext("charset", charset)
	}
	// decoders substitute U+FFFD for bytes they cannot map; a genuine
	// U+FFFD in the source survives re-encoding
	if bytes.ContainsRune(out, utf8.RuneError) && !roundTrips(enc, body, out) {
		return nil, errors.New(errors.ErrorTypeTranscoding, "invalid byte sequence for encoding").
			WithContext("charset", charset)
	}
	return out, nil
}

func roundTrips(enc encoding.Encoding, body, decoded []byte) bool {
	back, err := enc.NewEncoder().Bytes(decoded)
	return err == nil && bytes.Equal(back, body)
}

func (n *ResponseNormalizer) transcode(body []byte, charset string) ([]byte, error) {
	if !isUTF8(charset) && lookupEncoding(charset) == nil {
		n.logger.Warn().
			Str("charset", charset).
			Msg("charset not supported, body returned unconverted")
		return body, nil
	}
	out, err := Transcode(body, charset)
	if err != nil {
		return nil, err
	}
	n.logger.Debug().
		Str("charset", charset).
		Int("in_bytes", len(body)).
		Int("out_bytes", len(out)).
		Msg("response body transcoded")
	return out, nil
}
