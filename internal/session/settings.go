package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"golang.org/x/net/http/httpproxy"
)

const (
	DefaultConnectTimeout = time.Second
	DefaultTimeout        = 5 * time.Second
)

// DefaultUserAgent identifies requests made through this module.
var DefaultUserAgent = "sqlhttp/" + config.Version

// Settings is the effective configuration of a handle.
type Settings struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
	UserAgent      string

	Username   string
	Password   string
	HasUserPwd bool
	SigV4      string

	transportKey
}

// transportKey holds the settings baked into an http.Transport. A handle
// rebuilds its transport only when these change.
type transportKey struct {
	CAFile     string
	CABlob     string
	CertFile   string
	CertBlob   string
	KeyFile    string
	KeyBlob    string
	VerifyPeer bool
	VerifyHost bool

	IPResolve    int
	Proxy        string
	ProxyPort    int
	ProxyUserPwd string
	NoProxy      string

	TCPKeepAlive bool
	TCPKeepIdle  time.Duration

	connectTimeout time.Duration
	keepAlive      bool
}

// Baseline returns the settings every handle starts from.
func Baseline(cfg *config.Config) Settings {
	s := Settings{
		ConnectTimeout: DefaultConnectTimeout,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
	}
	s.VerifyPeer = true
	s.VerifyHost = true
	if cfg != nil && cfg.TimeoutMsec > 0 {
		s.Timeout = time.Duration(cfg.TimeoutMsec) * time.Millisecond
	}
	return s
}

func (s Settings) key(keepAlive bool) transportKey {
	k := s.transportKey
	k.connectTimeout = s.ConnectTimeout
	k.keepAlive = keepAlive
	return k
}

// tlsConfig builds the client TLS configuration.
func (s Settings) tlsConfig() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}

	if s.CAFile != "" || s.CABlob != "" {
		pool := x509.NewCertPool()
		pem := []byte(s.CABlob)
		if s.CAFile != "" {
			data, err := os.ReadFile(s.CAFile)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read CA bundle").
					WithContext("option", "CURLOPT_CAINFO")
			}
			pem = append(pem, '\n')
			pem = append(pem, data...)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New(errors.ErrorTypeConfig, "no certificates found in CA bundle").
				WithContext("option", "CURLOPT_CAINFO")
		}
		tc.RootCAs = pool
	}

	certPEM, keyPEM, err := s.clientPEM()
	if err != nil {
		return nil, err
	}
	if certPEM != nil {
		if keyPEM == nil {
			keyPEM = certPEM
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid client certificate").
				WithContext("option", "CURLOPT_SSLCERT")
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	switch {
	case !s.VerifyPeer:
		tc.InsecureSkipVerify = true
	case !s.VerifyHost:
		// chain is still verified, the host name is not
		roots := tc.RootCAs
		tc.InsecureSkipVerify = true
		tc.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return errors.New(errors.ErrorTypeTransport, "server presented no certificate")
			}
			opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
			for _, c := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(c)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		}
	}

	return tc, nil
}

func (s Settings) clientPEM() (cert, key []byte, err error) {
	if s.CertBlob != "" {
		cert = []byte(s.CertBlob)
	} else if s.CertFile != "" {
		if cert, err = os.ReadFile(s.CertFile); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read client certificate").
				WithContext("option", "CURLOPT_SSLCERT")
		}
	}
	if s.KeyBlob != "" {
		key = []byte(s.KeyBlob)
	} else if s.KeyFile != "" {
		if key, err = os.ReadFile(s.KeyFile); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read client key").
				WithContext("option", "CURLOPT_SSLKEY")
		}
	}
	return cert, key, nil
}

// proxyFunc resolves the proxy for a request. Without an explicit proxy
// the environment is consulted.
func (s Settings) proxyFunc() (func(*http.Request) (*url.URL, error), error) {
	if s.Proxy == "" && s.NoProxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	pc := httpproxy.FromEnvironment()
	if s.Proxy != "" {
		proxy, err := s.proxyURL()
		if err != nil {
			return nil, err
		}
		pc.HTTPProxy = proxy.String()
		pc.HTTPSProxy = proxy.String()
	}
	if s.NoProxy != "" {
		pc.NoProxy = s.NoProxy
	}
	fn := pc.ProxyFunc()
	return func(r *http.Request) (*url.URL, error) {
		return fn(r.URL)
	}, nil
}

func (s Settings) proxyURL() (*url.URL, error) {
	raw := s.Proxy
	if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "invalid proxy").
			WithContext("option", "CURLOPT_PROXY").
			WithContext("proxy", s.Proxy)
	}
	if s.ProxyPort > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(s.ProxyPort))
	}
	if s.ProxyUserPwd != "" {
		user, pass, ok := cutUserPwd(s.ProxyUserPwd)
		if ok {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u, nil
}

// newTransport builds an HTTP/1.1 transport for s.
func (s Settings) newTransport(keepAlive bool) (*http.Transport, error) {
	tc, err := s.tlsConfig()
	if err != nil {
		return nil, err
	}
	proxy, err := s.proxyFunc()
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: s.ConnectTimeout, KeepAlive: -1}
	if s.TCPKeepAlive {
		dialer.KeepAlive = s.TCPKeepIdle
	}
	network := ""
	switch s.IPResolve {
	case 1:
		network = "tcp4"
	case 2:
		network = "tcp6"
	}
	dial := func(ctx context.Context, nw, addr string) (net.Conn, error) {
		if network != "" {
			nw = network
		}
		return dialer.DialContext(ctx, nw, addr)
	}

	return &http.Transport{
		Proxy:               proxy,
		DialContext:         dial,
		TLSClientConfig:     tc,
		TLSHandshakeTimeout: s.ConnectTimeout,
		DisableKeepAlives:   !keepAlive,
		DisableCompression:  true,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		// HTTP/1.1 only
		TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
	}, nil
}
