package testutil

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Test servers shared by the transport, host and tool tests

// NewEchoTestServer creates a test server that reflects requests back
//
//	/echo            body and content type of the request, method in X-Method
//	/headers         request headers in wire format as the body
//	/status/{code}   empty response with the given status
//	/redirect?n=N    N redirect hops ending at /echo
//	/latin1          ISO-8859-1 text body
//	/bad-utf8        body that is not valid UTF-8 but claims to be
//	/unknown-charset body with a charset nobody knows
//	/gzip, /deflate  compressed bodies
//	/no-content-type body without a Content-Type header
//	/empty           200 with no body
func NewEchoTestServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Content-Length", strconv.FormatInt(r.ContentLength, 10))
		w.Header().Set("X-Transfer-Encoding", fmt.Sprint(r.TransferEncoding))
		if ct := r.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})

	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		r.Header.Write(w)
	})

	mux.HandleFunc("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil {
			code = http.StatusBadRequest
		}
		w.Header()["Content-Type"] = nil
		w.WriteHeader(code)
	})

	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		w.Header().Set("X-Hop", strconv.Itoa(n))
		if n <= 0 {
			http.Redirect(w, r, "/echo", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/redirect?n="+strconv.Itoa(n-1), http.StatusFound)
	})

	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; Charset=ISO-8859-1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("caf\xe9 cr\xe8me"))
	})

	mux.HandleFunc("/bad-utf8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte{'o', 'k', 0xff, 0xfe})
	})

	mux.HandleFunc("/unknown-charset", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=x-made-up")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("raw \xff bytes"))
	})

	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte("compressed with gzip"))
		zw.Close()
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	})

	mux.HandleFunc("/deflate", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write([]byte("compressed with deflate"))
		zw.Close()
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Encoding", "deflate")
		w.Write(buf.Bytes())
	})

	mux.HandleFunc("/no-content-type", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>untyped</html>"))
	})

	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
	})

	return httptest.NewServer(mux)
}

// NewErrorTestServer creates a test server that returns various HTTP error responses
func NewErrorTestServer() *httptest.Server {
	mux := http.NewServeMux()

	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		code := code
		mux.HandleFunc("/"+strconv.Itoa(code), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			fmt.Fprintf(w, `{"error": %q}`, http.StatusText(code))
		})
	}

	return httptest.NewServer(mux)
}

// NewSlowTestServer creates a test server for timeout and cancellation tests
//
//	/hang    sends headers, then blocks until the client goes away
//	/drip    sends one byte every interval until the client goes away
//	/stall   blocks before sending anything
func NewSlowTestServer(interval time.Duration) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/hang", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	mux.HandleFunc("/drip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				w.Write([]byte("."))
				w.(http.Flusher).Flush()
			}
		}
	})

	mux.HandleFunc("/stall", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	return httptest.NewServer(mux)
}

// RecordingServer captures every request it receives
type RecordingServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

// NewRecordingServer creates a server that records requests and answers
// with the given status and body
func NewRecordingServer(status int, body string) *RecordingServer {
	rs := &RecordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.requests = append(rs.requests, r.Clone(r.Context()))
		rs.bodies = append(rs.bodies, data)
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return rs
}

// Count returns the number of recorded requests
func (rs *RecordingServer) Count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.requests)
}

// Last returns the most recent request and its body
func (rs *RecordingServer) Last() (*http.Request, []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.requests) == 0 {
		return nil, nil
	}
	i := len(rs.requests) - 1
	return rs.requests[i], rs.bodies[i]
}
