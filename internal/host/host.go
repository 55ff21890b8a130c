// Package host binds HTTP sessions to SQLite connections.
//
// Every physical connection opened through a Host gets its own session and
// the http family of SQL functions. Interrupts raised on the Host reach the
// in-flight transaction of every session.
package host

import (
	"database/sql"
	"sync"

	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/logger"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Host owns the sessions of the connections it opened
type Host struct {
	logger zerolog.Logger
	config *config.Config
	driver string
	opts   []httpinternal.ExecutorOption

	mu       sync.Mutex
	sessions []*session.Session
	forward  func()
}

// New registers a database/sql driver whose connections carry the HTTP
// functions. Driver names are unique so several hosts can coexist.
func New(log zerolog.Logger, cfg *config.Config, opts ...httpinternal.ExecutorOption) *Host {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	h := &Host{
		logger: logger.ForComponent(log, "host"),
		config: cfg,
		driver: "sqlhttp_" + uuid.NewString(),
		opts:   opts,
	}
	sql.Register(h.driver, &sqlite3.SQLiteDriver{ConnectHook: h.connect})
	return h
}

// Driver returns the registered driver name.
func (h *Host) Driver() string {
	return h.driver
}

// Open opens a database on the host driver. An empty dsn uses the
// configured database. The pool is limited to one connection so a
// statement always sees the same session.
func (h *Host) Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = h.config.Database
	}
	db, err := sql.Open(h.driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database").
			WithContext("database", dsn)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (h *Host) connect(conn *sqlite3.SQLiteConn) error {
	log := logger.ForSession(h.logger, uuid.NewString())
	sess, err := session.New(log, h.config)
	if err != nil {
		return err
	}
	fns := &functions{
		logger:   log,
		session:  sess,
		executor: httpinternal.NewExecutor(log, sess, h.opts...),
	}
	if err := fns.register(conn); err != nil {
		sess.Close()
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.forward != nil {
		sess.Bridge().Install(h.forward)
	}
	h.sessions = append(h.sessions, sess)

	log.Debug().
		Int("sessions", len(h.sessions)).
		Msg("connection bound to HTTP session")
	return nil
}

// Interrupt raises the interrupt flag of every session. Safe to call from
// a signal handler goroutine.
func (h *Host) Interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sess := range h.sessions {
		sess.Bridge().Interrupt()
	}
}

// Install sets the handler an aborted transaction forwards its interrupt
// to, for current and future connections. The returned function restores
// the previous handler.
func (h *Host) Install(forward func()) (restore func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.forward
	h.setForward(forward)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.setForward(prev)
	}
}

func (h *Host) setForward(forward func()) {
	h.forward = forward
	for _, sess := range h.sessions {
		sess.Bridge().Install(forward)
	}
}

// Close destroys every live transport handle. Databases opened on the
// host should be closed first.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sess := range h.sessions {
		sess.Close()
	}
	h.sessions = nil
	h.logger.Debug().Msg("host closed")
}
