// Package store defines the outcome of a statement run against the record store.
package store

import (
	"context"
	"errors"
)

// Outcome classifies what happened to a statement.
type Outcome int

const (
	// Applied means the statement ran.
	Applied Outcome = iota
	// NoRows means a query ran but matched nothing.
	NoRows
	// NotConnected means the statement was not attempted.
	NotConnected
	// Integrity means a duplicate key or foreign key violation; the statement did not apply.
	Integrity
	// Malformed means a syntax or schema error (unknown table or column).
	Malformed
	// Failed covers every other error, including a lost connection.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NoRows:
		return "no_rows"
	case NotConnected:
		return "not_connected"
	case Integrity:
		return "integrity"
	case Malformed:
		return "malformed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is carried by NotConnected results.
var ErrNotConnected = errors.New("database not connected")

// Result is returned by every statement execution.
type Result struct {
	Outcome      Outcome
	RowsAffected int64
	Err          error
}

// OK reports whether the statement ran.
func (r Result) OK() bool {
	return r.Outcome == Applied || r.Outcome == NoRows
}

// Executor runs statements one at a time.
type Executor interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, stmt string) Result
	// QueryRow runs a query and scans its first row into dest.
	// A query matching nothing returns NoRows.
	QueryRow(ctx context.Context, stmt string, dest ...any) Result
}
