// Package mysql owns the single MySQL session used to write monitoring records.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
	"github.com/MrSnakeDoc/checkstore/internal/store"
)

// Options configures the MySQL session.
type Options struct {
	Host           string        // ex: "127.0.0.1"
	Port           int           // default 3306
	User           string        // ex: "shinken"
	Password       string        // optional
	Database       string        // ex: "glpidb"
	Charset        string        // ex: "utf8"
	ConnectTimeout time.Duration // dial + ping timeout for one attempt
	RetestInterval time.Duration // minimum delay between reconnect attempts
}

func (o Options) addr() string {
	port := o.Port
	if port == 0 {
		port = 3306
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// DSN renders the driver connection string.
func (o Options) DSN() string {
	cfg := gomysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = o.addr()
	cfg.DBName = o.Database
	cfg.Timeout = o.ConnectTimeout
	if o.Charset != "" {
		cfg.Params = map[string]string{"charset": o.Charset}
	}
	return cfg.FormatDSN()
}

// Manager holds one connection and reports its health.
// Exec and QueryRow are called from the host loop only; Connected and LastError
// may be read from any goroutine.
type Manager struct {
	opts Options
	log  logger.Logger
	dial func(ctx context.Context, dsn string) (*sql.DB, error)
	now  func() time.Time

	db          *sql.DB
	lastAttempt time.Time
	connected   atomic.Bool
	lastErr     atomic.Value // string
}

var _ store.Executor = (*Manager)(nil)

// New creates a disconnected manager.
func New(opts Options, log logger.Logger) *Manager {
	m := &Manager{
		opts: opts,
		log:  log.With(logger.Component("mysql")),
		dial: dial,
		now:  time.Now,
	}
	m.lastErr.Store("")
	return m
}

func dial(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	// One statement in flight at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// Connect establishes the session. On failure the manager stays disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.lastAttempt = m.now()
	m.closeDB()

	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}

	m.log.Info("connecting to mysql",
		logger.String("addr", m.opts.addr()),
		logger.String("database", m.opts.Database),
		logger.String("user", m.opts.User))

	db, err := m.dial(ctx, m.opts.DSN())
	if err != nil {
		m.markDisconnected(err)
		m.log.Error("mysql unavailable", logger.Error(err))
		return err
	}

	m.db = db
	m.connected.Store(true)
	m.lastErr.Store("")
	metrics.DBConnected.Set(1)
	m.log.Info("connected to mysql")
	return nil
}

// Retest reconnects while disconnected, at most once per retest interval.
// It reports whether an attempt was made.
func (m *Manager) Retest(ctx context.Context) bool {
	if m.connected.Load() {
		return false
	}
	if !m.lastAttempt.IsZero() && m.now().Sub(m.lastAttempt) < m.opts.RetestInterval {
		return false
	}
	metrics.DBReconnects.Inc()
	_ = m.Connect(ctx)
	return true
}

// Connected reports whether the session is usable.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// LastError returns the text of the last connection error, empty when healthy.
func (m *Manager) LastError() string {
	s, _ := m.lastErr.Load().(string)
	return s
}

// Exec implements store.Executor.
func (m *Manager) Exec(ctx context.Context, stmt string) store.Result {
	if !m.connected.Load() || m.db == nil {
		return store.Result{Outcome: store.NotConnected, Err: store.ErrNotConnected}
	}
	res, err := m.db.ExecContext(ctx, stmt)
	if err != nil {
		return m.failure(err)
	}
	n, _ := res.RowsAffected()
	return store.Result{Outcome: store.Applied, RowsAffected: n}
}

// QueryRow implements store.Executor.
func (m *Manager) QueryRow(ctx context.Context, stmt string, dest ...any) store.Result {
	if !m.connected.Load() || m.db == nil {
		return store.Result{Outcome: store.NotConnected, Err: store.ErrNotConnected}
	}
	err := m.db.QueryRowContext(ctx, stmt).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Result{Outcome: store.NoRows}
	}
	if err != nil {
		return m.failure(err)
	}
	return store.Result{Outcome: store.Applied}
}

// Close releases the session.
func (m *Manager) Close() error {
	m.connected.Store(false)
	metrics.DBConnected.Set(0)
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *Manager) failure(err error) store.Result {
	if IsConnectionLost(err) {
		m.log.Warn("mysql connection lost", logger.Error(err))
		m.markDisconnected(err)
		m.closeDB()
		return store.Result{Outcome: store.Failed, Err: err}
	}
	return store.Result{Outcome: Classify(err), Err: err}
}

func (m *Manager) markDisconnected(err error) {
	m.connected.Store(false)
	m.lastErr.Store(err.Error())
	metrics.DBConnected.Set(0)
}

func (m *Manager) closeDB() {
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
}
