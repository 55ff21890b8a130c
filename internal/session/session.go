// Package session owns the reusable transport handle of one database
// session together with its runtime option table.
//
// A Session is not safe for concurrent use. Hosts that serve several
// callers give each caller its own Session or serialize access.
package session

import (
	"net/http"

	"github.com/brendan.keane/sqlhttp/internal/cancel"
	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/rs/zerolog"
)

// Handle is a configured, connection-capable client instance.
type Handle struct {
	Settings Settings

	transport *http.Transport
	key       transportKey
	keepAlive bool
}

// Transport returns the handle's transport.
func (h *Handle) Transport() *http.Transport {
	return h.transport
}

// refresh rebuilds the transport when settings that are baked into it
// changed.
func (h *Handle) refresh() error {
	key := h.Settings.key(h.keepAlive)
	if h.transport != nil && key == h.key {
		return nil
	}
	t, err := h.Settings.newTransport(h.keepAlive)
	if err != nil {
		return err
	}
	if h.transport != nil {
		h.transport.CloseIdleConnections()
	}
	h.transport = t
	h.key = key
	return nil
}

func (h *Handle) close() {
	if h.transport != nil {
		h.transport.CloseIdleConnections()
	}
}

// Session is the per database session transport state.
type Session struct {
	logger zerolog.Logger
	config *config.Config
	table  *OptionTable
	handle *Handle
	bridge *cancel.Bridge
}

// New creates a session and stores the configured runtime options. An
// option rejected here is a configuration error.
func New(logger zerolog.Logger, cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Session{
		logger: logger.With().Str("component", "session").Logger(),
		config: cfg,
		table:  NewOptionTable(),
		bridge: &cancel.Bridge{},
	}
	for name, value := range cfg.Options {
		if _, err := s.SetOption(name, value); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configured option").
				WithContext("option", name)
		}
	}
	return s, nil
}

// KeepAlive reports the configured connection reuse policy.
func (s *Session) KeepAlive() bool {
	return s.config.KeepAlive
}

// Bridge returns the session's cancellation bridge.
func (s *Session) Bridge() *cancel.Bridge {
	return s.bridge
}

// Live reports whether a handle is currently held.
func (s *Session) Live() bool {
	return s.handle != nil
}

// Acquire returns the session handle, creating it if needed. The handle is
// reset to the baseline and every stored option is replayed.
func (s *Session) Acquire() (*Handle, error) {
	settings := Baseline(s.config)
	if err := s.table.Replay(&settings); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to apply runtime option")
	}

	created := s.handle == nil
	h := s.handle
	if created {
		h = &Handle{keepAlive: s.config.KeepAlive}
	}
	h.Settings = settings
	if err := h.refresh(); err != nil {
		if created {
			h.close()
		}
		return nil, err
	}
	s.handle = h

	s.logger.Debug().
		Bool("created", created).
		Int("options", s.table.Len()).
		Dur("timeout", settings.Timeout).
		Msg("transport handle acquired")
	return h, nil
}

// Release ends a transaction. Without keepAlive the handle is destroyed so
// the next Acquire starts clean.
func (s *Session) Release(h *Handle, keepAlive bool) {
	if h == nil || keepAlive {
		return
	}
	h.close()
	if s.handle == h {
		s.handle = nil
	}
	s.logger.Debug().Msg("transport handle destroyed")
}

// SetOption stores a runtime option after validating it and applies it to
// the live handle, if any.
func (s *Session) SetOption(name, value string) (bool, error) {
	opt, ok := Lookup(name)
	if !ok {
		return false, errors.New(errors.ErrorTypeConfig, "option not supported").
			WithContext("option", name)
	}

	// validate against the settings the option would land on
	scratch := Baseline(s.config)
	if err := s.table.Replay(&scratch); err != nil {
		return false, err
	}
	if err := opt.Apply(&scratch, value); err != nil {
		return false, err
	}
	if _, err := scratch.tlsConfig(); err != nil {
		return false, err
	}
	if _, err := scratch.proxyFunc(); err != nil {
		return false, err
	}

	s.table.Set(opt, value)
	s.logger.Debug().Str("option", opt.Name).Msg("runtime option set")

	if s.handle != nil {
		s.handle.Settings = scratch
		if err := s.handle.refresh(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ListOptions returns the stored options in allow-list order.
func (s *Session) ListOptions() []OptionValue {
	return s.table.Entries()
}

// ResetOptions clears the option table and returns the live handle to the
// baseline settings.
func (s *Session) ResetOptions() (bool, error) {
	s.table.Reset()
	if s.handle != nil {
		s.handle.Settings = Baseline(s.config)
		if err := s.handle.refresh(); err != nil {
			return false, err
		}
	}
	s.logger.Debug().Msg("runtime options reset")
	return true, nil
}

// Close destroys the live handle.
func (s *Session) Close() {
	if s.handle != nil {
		s.handle.close()
		s.handle = nil
	}
}
