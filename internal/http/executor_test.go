package http_test

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/brendan.keane/sqlhttp/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, cfg *config.Config, opts ...httpinternal.ExecutorOption) (*httpinternal.Executor, *session.Session) {
	t.Helper()
	sess, err := session.New(zerolog.Nop(), cfg)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return httpinternal.NewExecutor(zerolog.Nop(), sess, opts...), sess
}

func TestExecute_Verbs(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	t.Run("GET", func(t *testing.T) {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/echo").Build())
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		testutil.AssertEntry(t, resp.Headers, "X-Method", "GET", "method echoed")
		require.NotNil(t, resp.ContentType)
		assert.Equal(t, "application/octet-stream", *resp.ContentType)
	})

	t.Run("POST sends the body as one buffer", func(t *testing.T) {
		req := testutil.NewRequest("post", server.URL+"/echo").
			WithContent("application/x-www-form-urlencoded", "a=1&b=2").
			Build()
		resp, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "a=1&b=2", string(resp.Content))
		assert.Equal(t, "application/x-www-form-urlencoded", *resp.ContentType)
		testutil.AssertEntry(t, resp.Headers, "X-Content-Length", "7", "declared length")
	})

	t.Run("PUT streams with a declared length", func(t *testing.T) {
		req := testutil.NewRequest("PUT", server.URL+"/echo").
			WithContent("application/json", `{"k":"v"}`).
			Build()
		resp, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, `{"k":"v"}`, string(resp.Content))
		testutil.AssertEntry(t, resp.Headers, "X-Method", "PUT", "method echoed")
		testutil.AssertEntry(t, resp.Headers, "X-Content-Length", "9", "declared length")
		testutil.AssertEntry(t, resp.Headers, "X-Transfer-Encoding", "[]", "no chunked encoding")
	})

	t.Run("PATCH", func(t *testing.T) {
		req := testutil.NewRequest("PATCH", server.URL+"/echo").WithContent("text/plain", "patched").Build()
		resp, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "patched", string(resp.Content))
		testutil.AssertEntry(t, resp.Headers, "X-Method", "PATCH", "method echoed")
	})

	t.Run("custom verb is sent verbatim", func(t *testing.T) {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("PURGE", server.URL+"/echo").Build())
		require.NoError(t, err)
		testutil.AssertEntry(t, resp.Headers, "X-Method", "PURGE", "method echoed")
	})

	t.Run("DELETE with body", func(t *testing.T) {
		req := testutil.NewRequest("DELETE", server.URL+"/echo").WithContent("text/plain", "gone").Build()
		resp, err := exec.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "gone", string(resp.Content))
	})
}

func TestExecute_InvalidInputSendsNothing(t *testing.T) {
	server := testutil.NewRecordingServer(200, "ok")
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	tests := []*httpinternal.Request{
		testutil.NewRequest("PUT", server.URL).Build(),
		testutil.NewRequest("POST", server.URL).Build(),
		testutil.NewRequest("", server.URL).Build(),
		testutil.NewRequest("GET", "").Build(),
		{Method: "PATCH", URI: server.URL, Content: []byte("x")},
	}
	for _, req := range tests {
		_, err := exec.Execute(context.Background(), req)
		testutil.AssertErrorType(t, err, errors.ErrorTypeInvalidInput, req.Method)
	}
	assert.Equal(t, 0, server.Count())
}

func TestExecute_Headers(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	req := testutil.NewRequest("GET", server.URL+"/headers").
		WithHeader("X-Api-Key", "secret").
		WithHeader("X-Multi", "one").
		WithHeader("X-Multi", "two").
		WithHeader("Content-Type", "text/evil").
		WithHeader("", "orphan").
		Build()
	resp, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)

	sent := header.Parse(string(resp.Content))
	testutil.AssertEntry(t, sent, "X-Api-Key", "secret", "caller header")
	testutil.AssertEntry(t, sent, "X-Multi", "one", "first repeated header")
	testutil.AssertEntry(t, sent, "X-Multi", "two", "second repeated header")
	testutil.AssertEntry(t, sent, "Charsets", "utf-8", "charset preference")
	testutil.AssertEntry(t, sent, "User-Agent", session.DefaultUserAgent, "default user agent")
	testutil.AssertEntry(t, sent, "Accept-Encoding", "gzip, deflate", "accepted codings")
	testutil.AssertNoEntry(t, sent, "Content-Type", "content type only travels with content")
}

func TestExecute_ResponseHeaders(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/echo").Build())
	require.NoError(t, err)

	testutil.AssertEntry(t, resp.Headers, "Content-Type", "application/octet-stream", "content type listed")
	testutil.AssertNoEntry(t, resp.Headers, "HTTP/1.1", "status line is not a header")
	for _, e := range resp.Headers {
		assert.NotContains(t, e.Value, "\r")
	}
}

func TestExecute_Charsets(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	t.Run("latin1 is transcoded", func(t *testing.T) {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/latin1").Build())
		require.NoError(t, err)
		assert.Equal(t, "café crème", string(resp.Content))
		assert.Equal(t, "text/plain; Charset=ISO-8859-1", *resp.ContentType)
	})

	t.Run("invalid utf-8 fails", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/bad-utf8").Build())
		testutil.AssertErrorType(t, err, errors.ErrorTypeTranscoding, "invalid body")
	})

	t.Run("unknown charset passes through", func(t *testing.T) {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/unknown-charset").Build())
		require.NoError(t, err)
		assert.Equal(t, []byte("raw \xff bytes"), resp.Content)
	})
}

func TestExecute_ContentCodings(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	for path, want := range map[string]string{
		"/gzip":    "compressed with gzip",
		"/deflate": "compressed with deflate",
	} {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+path).Build())
		require.NoError(t, err, path)
		assert.Equal(t, want, string(resp.Content), path)
	}
}

func TestExecute_AbsentValues(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/no-content-type").Build())
	require.NoError(t, err)
	assert.Nil(t, resp.ContentType)
	assert.Equal(t, "<html>untyped</html>", string(resp.Content))

	resp, err = exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/empty").Build())
	require.NoError(t, err)
	assert.Nil(t, resp.Content)
	require.NotNil(t, resp.ContentType)

	resp, err = exec.Execute(context.Background(), testutil.NewRequest("HEAD", server.URL+"/echo").Build())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Nil(t, resp.Content)
}

func TestExecute_ErrorStatusIsAResponse(t *testing.T) {
	server := testutil.NewErrorTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	for _, code := range []int{400, 401, 404} {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/"+strconv.Itoa(code)).Build())
		require.NoError(t, err)
		assert.Equal(t, code, resp.Status)
	}

	resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/500").Build())
	require.NoError(t, err)
	assert.Equal(t, 500, resp.Status)
	assert.Equal(t, `{"error": "Internal Server Error"}`, string(resp.Content))
}

func TestExecute_Redirects(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig())

	t.Run("followed with every header block kept", func(t *testing.T) {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/redirect?n=2").Build())
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		testutil.AssertEntry(t, resp.Headers, "X-Hop", "2", "first hop")
		testutil.AssertEntry(t, resp.Headers, "X-Hop", "0", "last hop")
		testutil.AssertEntry(t, resp.Headers, "X-Method", "GET", "final response")
	})

	t.Run("too many hops", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/redirect?n=10").Build())
		testutil.AssertErrorType(t, err, errors.ErrorTypeTransport, "redirect limit")
	})

	t.Run("HEAD does not follow", func(t *testing.T) {
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("HEAD", server.URL+"/redirect?n=1").Build())
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
	})
}

func TestExecute_TransportFailures(t *testing.T) {
	t.Run("scheme not allowed", func(t *testing.T) {
		exec, sess := newExecutor(t, testutil.DefaultConfig())
		_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", "ftp://example.com/file").Build())
		testutil.AssertErrorType(t, err, errors.ErrorTypeTransport, "ftp")
		testutil.AssertErrorContains(t, err, "protocol not supported", "scheme message")
		assert.False(t, sess.Live())
	})

	t.Run("connection refused destroys the handle", func(t *testing.T) {
		server := testutil.NewEchoTestServer()
		url := server.URL
		server.Close()

		exec, sess := newExecutor(t, testutil.NewConfigBuilder().WithKeepAlive().Build())
		_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", url+"/echo").Build())
		testutil.AssertErrorType(t, err, errors.ErrorTypeTransport, "refused")
		assert.False(t, sess.Live())
	})

	t.Run("timeout", func(t *testing.T) {
		server := testutil.NewSlowTestServer(10 * time.Millisecond)
		defer server.Close()

		cfg := testutil.NewConfigBuilder().WithOption("CURLOPT_TIMEOUT_MS", "100").Build()
		exec, _ := newExecutor(t, cfg)
		start := time.Now()
		_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/stall").Build())
		testutil.AssertErrorType(t, err, errors.ErrorTypeTransport, "stall")
		testutil.AssertErrorContains(t, err, "timed out", "timeout message")
		testutil.AssertStringContains(t, errors.UserMessage(err), server.URL, "url in message")
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestExecute_Interrupt(t *testing.T) {
	testutil.SkipIfShort(t, "waits on a slow server")
	server := testutil.NewSlowTestServer(5 * time.Millisecond)
	defer server.Close()

	for _, path := range []string{"/drip", "/hang"} {
		t.Run(path, func(t *testing.T) {
			exec, sess := newExecutor(t, testutil.NewConfigBuilder().WithKeepAlive().Build(),
				httpinternal.WithPollInterval(5*time.Millisecond))

			var forwarded atomic.Int32
			restore := sess.Bridge().Install(func() { forwarded.Add(1) })
			defer restore()

			go func() {
				time.Sleep(100 * time.Millisecond)
				sess.Bridge().Interrupt()
			}()

			_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+path).Build())
			testutil.AssertErrorType(t, err, errors.ErrorTypeCancelled, "interrupted")
			assert.Equal(t, int32(1), forwarded.Load())
			assert.False(t, sess.Live())
		})
	}
}

func TestExecute_ParentContextCancel(t *testing.T) {
	server := testutil.NewSlowTestServer(5 * time.Millisecond)
	defer server.Close()
	exec, _ := newExecutor(t, testutil.DefaultConfig(), httpinternal.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, testutil.NewRequest("GET", server.URL+"/hang").Build())
	testutil.AssertErrorType(t, err, errors.ErrorTypeCancelled, "parent cancelled")
}

func TestExecute_KeepAlive(t *testing.T) {
	server := testutil.NewEchoTestServer()
	defer server.Close()

	exec, sess := newExecutor(t, testutil.NewConfigBuilder().WithKeepAlive().Build())
	_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/headers").Build())
	require.NoError(t, err)
	assert.True(t, sess.Live())

	resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/headers").Build())
	require.NoError(t, err)
	testutil.AssertEntry(t, header.Parse(string(resp.Content)), "Connection", "Keep-Alive", "reuse requested")

	exec, sess = newExecutor(t, testutil.DefaultConfig())
	resp, err = exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL+"/headers").Build())
	require.NoError(t, err)
	testutil.AssertEntry(t, header.Parse(string(resp.Content)), "Connection", "close", "no reuse")
	assert.False(t, sess.Live())
}

func TestExecute_UserAgentOption(t *testing.T) {
	server := testutil.NewRecordingServer(200, "ok")
	defer server.Close()

	exec, sess := newExecutor(t, testutil.DefaultConfig())
	_, err := sess.SetOption("CURLOPT_USERAGENT", "sqlhttp-test/2")
	require.NoError(t, err)
	_, err = sess.SetOption("CURLOPT_USERPWD", "bob:pw")
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL).Build())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Content))

	last, _ := server.Last()
	require.NotNil(t, last)
	testutil.AssertMethodEqual(t, last, "GET", "method")
	testutil.AssertHeaderSet(t, last, "User-Agent", "sqlhttp-test/2", "configured agent")
	user, pass, ok := last.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "bob", user)
	assert.Equal(t, "pw", pass)

	_, err = sess.ResetOptions()
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL).Build())
	require.NoError(t, err)
	last, _ = server.Last()
	testutil.AssertHeaderSet(t, last, "User-Agent", session.DefaultUserAgent, "baseline agent")
	testutil.AssertHeaderNotSet(t, last, "Authorization", "credentials cleared")
}

func TestExecute_TLSOptions(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	t.Run("unknown authority", func(t *testing.T) {
		exec, _ := newExecutor(t, testutil.DefaultConfig())
		_, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL).Build())
		testutil.AssertErrorType(t, err, errors.ErrorTypeTransport, "untrusted certificate")
	})

	t.Run("verification disabled", func(t *testing.T) {
		exec, _ := newExecutor(t, testutil.NewConfigBuilder().WithOption("CURLOPT_SSL_VERIFYPEER", "0").Build())
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL).Build())
		require.NoError(t, err)
		assert.Equal(t, "secure", string(resp.Content))
	})

	t.Run("trusted bundle", func(t *testing.T) {
		bundle := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
		exec, _ := newExecutor(t, testutil.NewConfigBuilder().WithOption("CURLOPT_CAINFO_BLOB", string(bundle)).Build())
		resp, err := exec.Execute(context.Background(), testutil.NewRequest("GET", server.URL).Build())
		require.NoError(t, err)
		assert.Equal(t, "secure", string(resp.Content))
	})
}
