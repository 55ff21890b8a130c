package host

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/tidwall/gjson"
)

// base64Content marks a content member holding base64 text.
const base64Content = "base64"

// responseRecord is the JSON form of a response. Absent values are null.
// Content that is not valid UTF-8 is base64 encoded and flagged by
// content_encoding, which is omitted otherwise.
type responseRecord struct {
	Status          int            `json:"status"`
	ContentType     *string        `json:"content_type"`
	Headers         []header.Entry `json:"headers"`
	Content         *string        `json:"content"`
	ContentEncoding *string        `json:"content_encoding,omitempty"`
}

// DecodeRequest reads a request record. Missing and null members are
// absent; validation of required members is left to the executor.
func DecodeRequest(data string) (*httpinternal.Request, error) {
	if !gjson.Valid(data) {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "request record is not valid JSON")
	}
	root := gjson.Parse(data)
	if !root.IsObject() {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "request record must be a JSON object")
	}

	req := &httpinternal.Request{
		Method:      textMember(root, "method"),
		URI:         textMember(root, "uri"),
		ContentType: textMember(root, "content_type"),
	}

	if content := root.Get("content"); content.Exists() && content.Type != gjson.Null {
		switch enc := textMember(root, "content_encoding"); enc {
		case "":
			req.Content = []byte(content.String())
		case base64Content:
			data, err := base64.StdEncoding.DecodeString(content.String())
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInvalidInput, "content is not valid base64").
					WithContext("field", "content")
			}
			req.Content = data
		default:
			return nil, errors.New(errors.ErrorTypeInvalidInput, "unsupported content encoding").
				WithContext("content_encoding", enc)
		}
	}

	headers := root.Get("headers")
	switch {
	case !headers.Exists() || headers.Type == gjson.Null:
	case headers.IsArray():
		for _, h := range headers.Array() {
			if !h.IsObject() {
				return nil, errors.New(errors.ErrorTypeInvalidInput, "header entries must be objects").
					WithContext("field", "headers")
			}
			req.Headers = append(req.Headers, header.Entry{
				Field: textMember(h, "field"),
				Value: textMember(h, "value"),
			})
		}
	default:
		return nil, errors.New(errors.ErrorTypeInvalidInput, "headers must be an array").
			WithContext("field", "headers")
	}
	return req, nil
}

func textMember(obj gjson.Result, key string) string {
	v := obj.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

// EncodeResponse renders a response record.
func EncodeResponse(resp *httpinternal.Response) (string, error) {
	rec := responseRecord{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Headers:     resp.Headers,
	}
	if resp.Content != nil {
		content := string(resp.Content)
		if !utf8.Valid(resp.Content) {
			content = base64.StdEncoding.EncodeToString(resp.Content)
			enc := base64Content
			rec.ContentEncoding = &enc
		}
		rec.Content = &content
	}
	return marshal(rec)
}

// EncodeHeader renders a header entry record.
func EncodeHeader(e header.Entry) (string, error) {
	return marshal(e)
}

func marshal(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode record")
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
