package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want store.Outcome
	}{
		{name: "nil", err: nil, want: store.Applied},
		{name: "duplicate key", err: &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, want: store.Integrity},
		{name: "foreign key", err: &gomysql.MySQLError{Number: 1452}, want: store.Integrity},
		{name: "syntax", err: &gomysql.MySQLError{Number: 1064}, want: store.Malformed},
		{name: "no such table", err: &gomysql.MySQLError{Number: 1146}, want: store.Malformed},
		{name: "unknown column", err: &gomysql.MySQLError{Number: 1054}, want: store.Malformed},
		{name: "wrapped", err: fmt.Errorf("exec: %w", &gomysql.MySQLError{Number: 1062}), want: store.Integrity},
		{name: "lock wait", err: &gomysql.MySQLError{Number: 1205}, want: store.Failed},
		{name: "plain", err: errors.New("boom"), want: store.Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsConnectionLost(t *testing.T) {
	if !IsConnectionLost(driver.ErrBadConn) {
		t.Error("driver.ErrBadConn should be a lost connection")
	}
	if !IsConnectionLost(fmt.Errorf("exec: %w", gomysql.ErrInvalidConn)) {
		t.Error("wrapped ErrInvalidConn should be a lost connection")
	}
	if IsConnectionLost(&gomysql.MySQLError{Number: 1062}) {
		t.Error("server errors are not lost connections")
	}
}

func TestDSN(t *testing.T) {
	dsn := Options{
		Host:     "db.local",
		User:     "shinken",
		Password: "secret",
		Database: "glpidb",
		Charset:  "utf8",
	}.DSN()

	for _, want := range []string{"shinken:secret@tcp(db.local:3306)/glpidb", "charset=utf8"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN() = %q, want it to contain %q", dsn, want)
		}
	}
}

func TestExecWhileDisconnected(t *testing.T) {
	m := New(Options{}, logger.NewNop())

	res := m.Exec(context.Background(), "UPDATE t SET a=1")
	if res.Outcome != store.NotConnected {
		t.Errorf("Exec() outcome = %v, want not_connected", res.Outcome)
	}
	if !errors.Is(res.Err, store.ErrNotConnected) {
		t.Errorf("Exec() err = %v, want ErrNotConnected", res.Err)
	}

	var n int64
	if res := m.QueryRow(context.Background(), "SELECT 1", &n); res.Outcome != store.NotConnected {
		t.Errorf("QueryRow() outcome = %v, want not_connected", res.Outcome)
	}
}

func TestConnectFailureStaysDisconnected(t *testing.T) {
	m := New(Options{Host: "db.local"}, logger.NewNop())
	m.dial = func(ctx context.Context, dsn string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}

	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("Connect() should fail")
	}
	if m.Connected() {
		t.Error("Connected() = true after failed connect")
	}
	if m.LastError() != "connection refused" {
		t.Errorf("LastError() = %q", m.LastError())
	}
}

func TestRetestHonoursInterval(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	attempts := 0

	m := New(Options{RetestInterval: 5 * time.Second}, logger.NewNop())
	m.now = func() time.Time { return now }
	m.dial = func(ctx context.Context, dsn string) (*sql.DB, error) {
		attempts++
		return nil, errors.New("down")
	}

	_ = m.Connect(context.Background())
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}

	now = now.Add(2 * time.Second)
	if m.Retest(context.Background()) {
		t.Error("Retest() attempted before the interval elapsed")
	}

	now = now.Add(3 * time.Second)
	if !m.Retest(context.Background()) {
		t.Error("Retest() should attempt once the interval elapsed")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetestSkipsWhenConnected(t *testing.T) {
	m := New(Options{}, logger.NewNop())
	m.connected.Store(true)
	if m.Retest(context.Background()) {
		t.Error("Retest() should not reconnect a healthy session")
	}
}
