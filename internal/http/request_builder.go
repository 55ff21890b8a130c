package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/buffer"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/rs/zerolog"
	"golang.org/x/net/http/httpguts"
)

// acceptEncoding lists the content codings decodeBody understands.
const acceptEncoding = "gzip, deflate"

// RequestBuilder validates structured requests and turns them into
// transport requests for a session handle
type RequestBuilder struct {
	logger      zerolog.Logger
	credentials CredentialsProvider
}

// NewRequestBuilder creates a new request builder. A nil credentials
// provider falls back to the AWS default credential chain.
func NewRequestBuilder(logger zerolog.Logger, credentials CredentialsProvider) *RequestBuilder {
	if credentials == nil {
		credentials = defaultCredentials{}
	}
	return &RequestBuilder{
		logger:      logger.With().Str("component", "request_builder").Logger(),
		credentials: credentials,
	}
}

// Validate checks a request before any transport work and derives its verb.
func (b *RequestBuilder) Validate(req *Request) (Verb, error) {
	if req == nil {
		return VerbUnknown, errors.New(errors.ErrorTypeInvalidInput, "request must not be null")
	}
	if req.Method == "" {
		return VerbUnknown, errors.New(errors.ErrorTypeInvalidInput, "must not be null").
			WithContext("field", "method")
	}
	if req.URI == "" {
		return VerbUnknown, errors.New(errors.ErrorTypeInvalidInput, "must not be null").
			WithContext("field", "uri")
	}

	verb := ParseVerb(req.Method)
	if verb == VerbUnknown {
		// custom verbs must be a single token, CONNECT would open a tunnel
		if !httpguts.ValidHeaderFieldName(req.Method) || strings.EqualFold(req.Method, http.MethodConnect) {
			return verb, errors.New(errors.ErrorTypeInvalidInput, "method is not a valid request token").
				WithContext("field", "method").
				WithContext("method", req.Method)
		}
	}

	if err := checkScheme(req.URI); err != nil {
		return verb, err
	}

	if req.Content != nil && req.ContentType == "" {
		return verb, errors.New(errors.ErrorTypeInvalidInput, "content_type is required when content is present").
			WithContext("field", "content_type")
	}
	if req.Content == nil && verb.requiresContent() {
		return verb, errors.New(errors.ErrorTypeInvalidInput, "content is required for this method").
			WithContext("field", "content").
			WithContext("method", verb.String())
	}
	return verb, nil
}

// checkScheme allows only http and https targets.
func checkScheme(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInvalidInput, "malformed uri").
			WithContext("field", "uri")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return errors.New(errors.ErrorTypeTransport, "protocol not supported or disabled").
		WithContext("url", raw).
		WithContext("scheme", u.Scheme)
}

// Build creates the transport request for a validated request. progress is
// consulted before every outbound body chunk.
func (b *RequestBuilder) Build(ctx context.Context, req *Request, verb Verb, h *session.Handle, keepAlive bool, progress func() error) (*http.Request, error) {
	method := req.Method
	if verb != VerbUnknown {
		method = verb.String()
	}

	logger := b.logger.With().
		Str("method", method).
		Str("uri", req.URI).
		Logger()

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URI, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidInput, "failed to create HTTP request").
			WithContext("method", method).
			WithContext("url", req.URI)
	}

	if req.Content != nil {
		attachBody(httpReq, req.Content, verb, progress)
		httpReq.Header.Set("Content-Type", req.ContentType)
		logger.Debug().
			Int("body_length", len(req.Content)).
			Bool("streamed", !verb.formPayload()).
			Msg("request body attached")
	}

	for _, e := range header.ToWire(req.Headers, keepAlive) {
		httpReq.Header.Add(e.Field, e.Value)
	}

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.Settings.UserAgent)
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", acceptEncoding)
	}

	if h.Settings.SigV4 != "" {
		if err := b.applySigV4(ctx, httpReq, req.Content, h.Settings); err != nil {
			return nil, err
		}
	} else if h.Settings.HasUserPwd {
		httpReq.SetBasicAuth(h.Settings.Username, h.Settings.Password)
	}

	return httpReq, nil
}

// attachBody hands GET, POST and DELETE payloads over as one buffer and
// streams everything else from a read buffer with a declared length.
func attachBody(r *http.Request, content []byte, verb Verb, progress func() error) {
	r.ContentLength = int64(len(content))
	if len(content) == 0 {
		r.Body = http.NoBody
		r.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		return
	}

	open := func() io.Reader { return buffer.NewReadBuffer(content) }
	if verb.formPayload() {
		open = func() io.Reader { return bytes.NewReader(content) }
	}
	r.Body = io.NopCloser(&progressReader{r: open(), progress: progress})
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(&progressReader{r: open(), progress: progress}), nil
	}
}

// progressReader consults progress before each read.
type progressReader struct {
	r        io.Reader
	progress func() error
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.progress != nil {
		if err := p.progress(); err != nil {
			return 0, err
		}
	}
	return p.r.Read(b)
}
