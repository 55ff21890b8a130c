package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	"github.com/brendan.keane/sqlhttp/internal/host"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/brendan.keane/sqlhttp/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrinter(include, verbose bool) (*ResponsePrinter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &ResponsePrinter{Out: &out, Err: &errOut, IncludeHeaders: include, Verbose: verbose}, &out, &errOut
}

func TestNewRequestFromConfig(t *testing.T) {
	cfg := testutil.NewConfigBuilder().
		WithMethod("POST").
		WithHeader("X-A: 1").
		WithHeader("not a header").
		WithData("a=1", "").
		Build()

	req := NewRequestFromConfig(cfg, "http://example.com")
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, []header.Entry{{Field: "X-A", Value: "1"}}, req.Headers)
	assert.Equal(t, []byte("a=1"), req.Content)
	assert.Equal(t, "application/x-www-form-urlencoded", req.ContentType)

	cfg = testutil.NewConfigBuilder().WithData(`{"a":1}`, "application/json").Build()
	req = NewRequestFromConfig(cfg, "http://example.com")
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "application/json", req.ContentType)

	req = NewRequestFromConfig(testutil.DefaultConfig(), "http://example.com")
	assert.Nil(t, req.Content)
}

func TestRequestHandler_Run(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	handler := NewRequestHandler(zerolog.Nop())

	t.Run("body only", func(t *testing.T) {
		printer, out, errOut := newPrinter(false, false)
		cfg := testutil.NewConfigBuilder().WithMethod("PUT").WithData("hello", "text/plain").Build()
		require.NoError(t, handler.Run(context.Background(), cfg, server.URL+"/echo", printer))
		assert.Equal(t, "hello", out.String())
		assert.Empty(t, errOut.String())
	})

	t.Run("include headers", func(t *testing.T) {
		printer, out, _ := newPrinter(true, false)
		require.NoError(t, handler.Run(context.Background(), testutil.DefaultConfig(), server.URL+"/latin1", printer))
		assert.True(t, strings.HasPrefix(out.String(), "200\n"), out.String())
		assert.Contains(t, out.String(), "Content-Type: text/plain; Charset=ISO-8859-1\n")
		assert.True(t, strings.HasSuffix(out.String(), "\ncafé crème"))
	})

	t.Run("verbose", func(t *testing.T) {
		printer, out, errOut := newPrinter(false, true)
		cfg := testutil.NewConfigBuilder().WithHeader("X-Trace: 7").Build()
		require.NoError(t, handler.Run(context.Background(), cfg, server.URL+"/echo", printer))
		assert.Contains(t, errOut.String(), "> GET "+server.URL+"/echo\n")
		assert.Contains(t, errOut.String(), "> X-Trace: 7\n")
		assert.Contains(t, errOut.String(), "< 200\n")
		assert.Contains(t, errOut.String(), "< X-Method: GET\n")
		assert.Empty(t, out.String(), "GET echo has no body")
	})

	t.Run("transport error", func(t *testing.T) {
		printer, _, _ := newPrinter(false, false)
		err := handler.Run(context.Background(), testutil.DefaultConfig(), "gopher://example.com", printer)
		testutil.AssertErrorType(t, err, errors.ErrorTypeTransport, "scheme")
	})
}

func TestRequestHandler_Execute(t *testing.T) {
	handler := NewRequestHandler(zerolog.Nop())

	cmd := &cobra.Command{}
	cmd.SetContext(config.WithConfig(context.Background(), testutil.DefaultConfig()))
	err := handler.Execute(cmd, nil)
	testutil.AssertErrorType(t, err, errors.ErrorTypeInvalidInput, "missing uri")

	server := testutil.NewRecordingServer(201, "created")
	defer server.Close()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, handler.Execute(cmd, []string{server.URL}))
	assert.Equal(t, "created", out.String())
	assert.Equal(t, 1, server.Count())
}

func TestQueryHandler_Run(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()

	handler := NewQueryHandler(zerolog.Nop())
	hst := host.New(zerolog.Nop(), testutil.DefaultConfig())
	defer hst.Close()

	var out bytes.Buffer
	require.NoError(t, handler.Run(context.Background(), hst, ":memory:", "SELECT urlencode('a b') AS encoded, NULL AS nothing, 42 AS n", &out))
	assert.Equal(t, "encoded\tnothing\tn\na+b\tNULL\t42\n", out.String())

	out.Reset()
	query := "SELECT json_extract(http_get('" + server.URL + "/latin1'), '$.content') AS body"
	require.NoError(t, handler.Run(context.Background(), hst, ":memory:", query, &out))
	assert.Equal(t, "body\ncafé crème\n", out.String())

	err := handler.Run(context.Background(), hst, ":memory:", "SELECT http_set_curlopt('CURLOPT_NOPE', '1')", &out)
	testutil.AssertErrorType(t, err, errors.ErrorTypeInternal, "rejected option")
	testutil.AssertErrorContains(t, err, "option not supported", "sqlite carries the message")
}

func TestQueryHandler_Execute_RequiresSQL(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(config.WithConfig(context.Background(), testutil.DefaultConfig()))
	err := NewQueryHandler(zerolog.Nop()).Execute(cmd, []string{"  "})
	testutil.AssertErrorType(t, err, errors.ErrorTypeInvalidInput, "empty sql")
}

func TestPrintOptions(t *testing.T) {
	var out bytes.Buffer
	PrintOptions(&out, []session.OptionValue{{Name: "CURLOPT_TIMEOUT", Value: "5"}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(session.Options())+1)
	assert.Equal(t, "Runtime options", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "CURLOPT_CAINFO "))
	assert.Contains(t, out.String(), "integer  = 5")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "CURLOPT_AWS_SIGV4"))
}

func TestOptionsHandler_Execute(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithOption("curlopt_useragent", "x/1").Build()
	cmd := &cobra.Command{}
	cmd.SetContext(config.WithConfig(context.Background(), cfg))
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, NewOptionsHandler(zerolog.Nop()).Execute(cmd, nil))
	assert.Contains(t, out.String(), "string  = x/1")
}

func TestResponsePrinter_NoContent(t *testing.T) {
	printer, out, _ := newPrinter(false, false)
	printer.PrintResponse(&httpinternal.Response{Status: 204})
	assert.Empty(t, out.String())
}

func TestNewMCPHandler(t *testing.T) {
	handler := NewMCPHandler(zerolog.Nop())
	require.NotNil(t, handler)
}
