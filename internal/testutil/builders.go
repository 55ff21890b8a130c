package testutil

import (
	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/header"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
)

// ConfigBuilder provides a fluent interface for building test configurations
type ConfigBuilder struct {
	config *config.Config
}

// NewConfigBuilder creates a new config builder with sensible defaults
func NewConfigBuilder() *ConfigBuilder {
	cfg := config.NewConfig()
	cfg.Logger.Level = "error"
	cfg.Logger.Format = "json"
	return &ConfigBuilder{config: cfg}
}

// WithKeepAlive enables persistent connections
func (b *ConfigBuilder) WithKeepAlive() *ConfigBuilder {
	b.config.KeepAlive = true
	return b
}

// WithTimeoutMsec sets the overall timeout override
func (b *ConfigBuilder) WithTimeoutMsec(ms int) *ConfigBuilder {
	b.config.TimeoutMsec = ms
	return b
}

// WithOption stores a runtime option replayed into new sessions
func (b *ConfigBuilder) WithOption(name, value string) *ConfigBuilder {
	b.config.Options[name] = value
	return b
}

// WithDatabase sets the SQLite DSN
func (b *ConfigBuilder) WithDatabase(dsn string) *ConfigBuilder {
	b.config.Database = dsn
	return b
}

// WithMethod sets the request command method
func (b *ConfigBuilder) WithMethod(method string) *ConfigBuilder {
	b.config.Method = method
	return b
}

// WithHeader adds a request command header in "Field: Value" form
func (b *ConfigBuilder) WithHeader(h string) *ConfigBuilder {
	b.config.Headers = append(b.config.Headers, h)
	return b
}

// WithData sets the request command body and its content type
func (b *ConfigBuilder) WithData(data, contentType string) *ConfigBuilder {
	b.config.Data = data
	b.config.ContentType = contentType
	return b
}

// WithIncludeHeaders prints response headers in the request command
func (b *ConfigBuilder) WithIncludeHeaders() *ConfigBuilder {
	b.config.IncludeHeaders = true
	return b
}

// WithVerbose enables verbose request command output
func (b *ConfigBuilder) WithVerbose() *ConfigBuilder {
	b.config.Verbose = true
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *config.Config {
	return b.config
}

// DefaultConfig returns a quiet configuration for tests
func DefaultConfig() *config.Config {
	return NewConfigBuilder().Build()
}

// RequestFixture builds structured requests for tests
type RequestFixture struct {
	req httpinternal.Request
}

// NewRequest starts a request fixture
func NewRequest(method, uri string) *RequestFixture {
	return &RequestFixture{req: httpinternal.Request{Method: method, URI: uri}}
}

// WithHeader appends a header entry
func (f *RequestFixture) WithHeader(field, value string) *RequestFixture {
	f.req.Headers = append(f.req.Headers, header.Entry{Field: field, Value: value})
	return f
}

// WithContent sets the body and its content type
func (f *RequestFixture) WithContent(contentType, content string) *RequestFixture {
	f.req.ContentType = contentType
	f.req.Content = []byte(content)
	return f
}

// Build returns the request
func (f *RequestFixture) Build() *httpinternal.Request {
	req := f.req
	return &req
}
