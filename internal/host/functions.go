package host

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/brendan.keane/sqlhttp/internal/urlencode"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const formContentType = "application/x-www-form-urlencoded"

// functions holds the SQL functions bound to one connection. Arguments are
// taken as interface{} so that NULL reaches the function instead of failing
// argument conversion.
type functions struct {
	logger   zerolog.Logger
	session  *session.Session
	executor httpinternal.HTTPExecutor
}

type sqlFunction struct {
	name string
	impl interface{}
	pure bool
}

func (f *functions) table() []sqlFunction {
	return []sqlFunction{
		{"http", f.http, false},
		{"http_get", f.get, false},
		{"http_get", f.getWithData, false},
		{"http_post", f.post, false},
		{"http_post", f.postForm, false},
		{"http_put", f.put, false},
		{"http_patch", f.patch, false},
		{"http_delete", f.delete, false},
		{"http_delete", f.deleteWithContent, false},
		{"http_head", f.head, false},
		{"http_header", f.header, true},
		{"http_set_curlopt", f.setOption, false},
		{"http_reset_curlopt", f.resetOptions, false},
		{"http_list_curlopt", f.listOptions, false},
		{"urlencode", f.urlencode, true},
		{"urlencode_map", f.urlencodeMap, true},
		{"text_to_bytea", textToBytea, true},
		{"bytea_to_text", byteaToText, true},
	}
}

func (f *functions) register(conn *sqlite3.SQLiteConn) error {
	for _, fn := range f.table() {
		if err := conn.RegisterFunc(fn.name, fn.impl, fn.pure); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to register SQL function").
				WithContext("function", fn.name)
		}
	}
	return nil
}

func (f *functions) http(record interface{}) (interface{}, error) {
	data, ok := textArg(record)
	if !ok {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "request must not be null")
	}
	req, err := DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	return f.execute(req)
}

func (f *functions) get(uri interface{}) (interface{}, error) {
	return f.execute(newRequest("GET", uri, nil, nil))
}

func (f *functions) getWithData(uri, data interface{}) (interface{}, error) {
	req := newRequest("GET", uri, nil, nil)
	if query, ok, err := encodeData(data); err != nil {
		return nil, err
	} else if ok {
		sep := "?"
		if strings.Contains(req.URI, "?") {
			sep = "&"
		}
		req.URI += sep + query
	}
	return f.execute(req)
}

func (f *functions) post(uri, content, contentType interface{}) (interface{}, error) {
	return f.execute(newRequest("POST", uri, content, contentType))
}

func (f *functions) postForm(uri, data interface{}) (interface{}, error) {
	form, _, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return f.execute(newRequest("POST", uri, form, formContentType))
}

func (f *functions) put(uri, content, contentType interface{}) (interface{}, error) {
	return f.execute(newRequest("PUT", uri, content, contentType))
}

func (f *functions) patch(uri, content, contentType interface{}) (interface{}, error) {
	return f.execute(newRequest("PATCH", uri, content, contentType))
}

func (f *functions) delete(uri interface{}) (interface{}, error) {
	return f.execute(newRequest("DELETE", uri, nil, nil))
}

func (f *functions) deleteWithContent(uri, content, contentType interface{}) (interface{}, error) {
	return f.execute(newRequest("DELETE", uri, content, contentType))
}

func (f *functions) head(uri interface{}) (interface{}, error) {
	return f.execute(newRequest("HEAD", uri, nil, nil))
}

func (f *functions) execute(req *httpinternal.Request) (interface{}, error) {
	resp, err := f.executor.Execute(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return EncodeResponse(resp)
}

func (f *functions) header(field, value interface{}) (interface{}, error) {
	name, _ := textArg(field)
	text, _ := textArg(value)
	return EncodeHeader(header.Entry{Field: name, Value: text})
}

func (f *functions) setOption(name, value interface{}) (int64, error) {
	n, ok := textArg(name)
	if !ok {
		return 0, errors.New(errors.ErrorTypeInvalidInput, "option name must not be null")
	}
	v, ok := textArg(value)
	if !ok {
		return 0, errors.New(errors.ErrorTypeInvalidInput, "option value must not be null").
			WithContext("option", n)
	}
	if _, err := f.session.SetOption(n, v); err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *functions) resetOptions() (int64, error) {
	if _, err := f.session.ResetOptions(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *functions) listOptions() (string, error) {
	data, err := json.Marshal(f.session.ListOptions())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode options")
	}
	return string(data), nil
}

func (f *functions) urlencode(text interface{}) interface{} {
	s, ok := textArg(text)
	if !ok {
		return nil
	}
	return urlencode.Encode(s)
}

func (f *functions) urlencodeMap(data interface{}) (interface{}, error) {
	encoded, ok, err := encodeData(data)
	if err != nil || !ok {
		return nil, err
	}
	return encoded, nil
}

func textToBytea(v interface{}) interface{} {
	b, ok := bytesArg(v)
	if !ok {
		return nil
	}
	return b
}

func byteaToText(v interface{}) interface{} {
	s, ok := textArg(v)
	if !ok {
		return nil
	}
	return s
}

// encodeData url-encodes a JSON object. A NULL argument has no pairs.
func encodeData(data interface{}) (string, bool, error) {
	s, ok := textArg(data)
	if !ok {
		return "", false, nil
	}
	return urlencode.EncodeMap(s)
}

// newRequest builds a request from SQL arguments. A NULL content argument
// leaves the content absent.
func newRequest(method string, uri, content, contentType interface{}) *httpinternal.Request {
	req := &httpinternal.Request{Method: method}
	req.URI, _ = textArg(uri)
	req.ContentType, _ = textArg(contentType)
	if b, ok := bytesArg(content); ok {
		req.Content = b
	}
	return req
}

// textArg converts a SQL value to text. NULL reports false.
func textArg(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		if x == nil {
			return "", false
		}
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

// bytesArg converts a SQL value to bytes. NULL reports false.
func bytesArg(v interface{}) ([]byte, bool) {
	if b, ok := v.([]byte); ok {
		if b == nil {
			return nil, false
		}
		return b, true
	}
	s, ok := textArg(v)
	if !ok {
		return nil, false
	}
	return []byte(s), true
}
