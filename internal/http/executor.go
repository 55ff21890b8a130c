package http

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/brendan.keane/sqlhttp/internal/buffer"
	"github.com/brendan.keane/sqlhttp/internal/cancel"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/logger"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRedirects is the number of redirect hops followed for all verbs but HEAD
	DefaultMaxRedirects = 5

	readChunkSize = 16 * 1024
)

// Executor drives one request/response transaction per call over a session
type Executor struct {
	logger       zerolog.Logger
	session      *session.Session
	builder      *RequestBuilder
	normalizer   *ResponseNormalizer
	maxRedirects int
	pollInterval time.Duration
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithCredentialsProvider sets the AWS credentials source for SigV4
func WithCredentialsProvider(p CredentialsProvider) ExecutorOption {
	return func(e *Executor) {
		e.builder = NewRequestBuilder(e.logger, p)
	}
}

// WithPollInterval sets how often a blocked transaction checks for interrupts
func WithPollInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.pollInterval = d
	}
}

// NewExecutor creates an executor bound to sess
func NewExecutor(log zerolog.Logger, sess *session.Session, opts ...ExecutorOption) *Executor {
	log = logger.ForComponent(log, "executor")
	e := &Executor{
		logger:       log,
		session:      sess,
		builder:      NewRequestBuilder(log, nil),
		normalizer:   NewResponseNormalizer(log),
		maxRedirects: DefaultMaxRedirects,
		pollInterval: cancel.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates req, performs exactly one transaction and returns the
// normalized response. Non-2xx statuses are responses, not errors.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	verb, err := e.builder.Validate(req)
	if err != nil {
		return nil, err
	}

	log := logger.ForRequest(e.logger, uuid.NewString(), req.Method, req.URI)
	log.Debug().Msg("executing HTTP request")

	h, err := e.session.Acquire()
	if err != nil {
		log.Error().Err(err).Msg("failed to acquire transport handle")
		return nil, err
	}

	bridge := e.session.Bridge()
	bridge.Clear()
	tctx, stop := bridge.Guard(ctx, e.pollInterval)
	defer stop()

	keepAlive := e.session.KeepAlive()
	httpReq, err := e.builder.Build(tctx, req, verb, h, keepAlive, bridge.Progress)
	if err != nil {
		e.session.Release(h, false)
		return nil, err
	}

	var rawHeaders, body buffer.Sink
	client := &http.Client{
		Transport:     h.Transport(),
		Timeout:       h.Settings.Timeout,
		CheckRedirect: e.redirectPolicy(verb, &rawHeaders),
	}

	start := time.Now()
	status, contentType, err := e.perform(client, httpReq, &rawHeaders, &body, bridge.Progress)
	duration := time.Since(start)
	stop()

	if err != nil {
		e.session.Release(h, false)
		if cancel.Aborted(tctx) || bridge.Pending() || stderrors.Is(err, cancel.ErrAborted) {
			log.Warn().Dur("duration", duration).Msg("HTTP request cancelled")
			bridge.Redeliver()
			return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "request cancelled").
				WithContext("url", req.URI)
		}
		log.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, errors.Wrap(unwrapURLError(err), errors.ErrorTypeTransport, transportMessage(err)).
			WithContext("url", req.URI).
			WithContext("duration", duration)
	}

	e.session.Release(h, keepAlive)

	log.Debug().
		Int("status", status).
		Int("body_length", body.Len()).
		Dur("duration", duration).
		Msg("HTTP request completed")

	return e.normalizer.Normalize(status, contentType, rawHeaders.Bytes(), body.Bytes())
}

// perform runs the transaction, capturing the final header block and the
// decoded body chunk by chunk.
func (e *Executor) perform(client *http.Client, req *http.Request, rawHeaders, body *buffer.Sink, progress func() error) (int, *string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	writeHeaderBlock(rawHeaders, resp)

	var contentType *string
	if values := resp.Header.Values("Content-Type"); len(values) > 0 {
		ct := values[0]
		contentType = &ct
	}

	src, err := decodeBody(resp)
	if err != nil {
		return 0, nil, err
	}
	if err := drain(body, src, progress); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, contentType, nil
}

// redirectPolicy follows at most maxRedirects hops, none for HEAD, and
// records every intermediate header block.
func (e *Executor) redirectPolicy(verb Verb, rawHeaders *buffer.Sink) func(*http.Request, []*http.Request) error {
	return func(next *http.Request, via []*http.Request) error {
		if verb == VerbHead {
			return http.ErrUseLastResponse
		}
		if next.Response != nil {
			writeHeaderBlock(rawHeaders, next.Response)
		}
		if len(via) > e.maxRedirects {
			return fmt.Errorf("maximum (%d) redirects followed", e.maxRedirects)
		}
		if err := checkScheme(next.URL.String()); err != nil {
			return err
		}
		return nil
	}
}

// writeHeaderBlock appends a status line, the header lines and a blank
// line, as they appear on the wire.
func writeHeaderBlock(dst *buffer.Sink, resp *http.Response) {
	fmt.Fprintf(dst, "%s %s\r\n", resp.Proto, resp.Status)
	_ = resp.Header.Write(dst)
	dst.WriteString("\r\n")
}

// drain copies src into dst, consulting progress before every chunk.
func drain(dst *buffer.Sink, src io.Reader, progress func() error) error {
	chunk := make([]byte, readChunkSize)
	for {
		if err := progress(); err != nil {
			return err
		}
		n, err := src.Read(chunk)
		if n > 0 {
			dst.Write(chunk[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// unwrapURLError drops the "Method URL:" prefix net/http adds.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// transportMessage describes a failure class when the error text alone is
// not enough.
func transportMessage(err error) string {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return "operation timed out"
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return "could not resolve host"
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) && opErr.Op == "dial" {
		return "could not connect to server"
	}
	return "HTTP transaction failed"
}
