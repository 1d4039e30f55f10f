// Package storetest provides an in-memory store.Executor for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/checkstore/internal/store"
)

// Rule scripts the result of statements containing Match.
// When Row is set, QueryRow copies its values into dest.
// A rule with Times > 0 answers that many statements and is then dropped.
type Rule struct {
	Match  string
	Result store.Result
	Row    []any
	Times  int
}

// Executor records statements and answers from its rules, first match wins.
// Statements matching no rule are Applied.
type Executor struct {
	Rules      []Rule
	Statements []string
}

var _ store.Executor = (*Executor)(nil)

// On adds a rule.
func (e *Executor) On(match string, res store.Result, row ...any) *Executor {
	e.Rules = append(e.Rules, Rule{Match: match, Result: res, Row: row})
	return e
}

// Exec implements store.Executor.
func (e *Executor) Exec(_ context.Context, stmt string) store.Result {
	e.Statements = append(e.Statements, stmt)
	if r, ok := e.match(stmt); ok {
		return r.Result
	}
	return store.Result{Outcome: store.Applied, RowsAffected: 1}
}

// QueryRow implements store.Executor.
func (e *Executor) QueryRow(_ context.Context, stmt string, dest ...any) store.Result {
	e.Statements = append(e.Statements, stmt)
	r, ok := e.match(stmt)
	if !ok {
		return store.Result{Outcome: store.NoRows}
	}
	if r.Result.Outcome == store.Applied && r.Row != nil {
		if err := assign(dest, r.Row); err != nil {
			return store.Result{Outcome: store.Failed, Err: err}
		}
	}
	return r.Result
}

// Once adds a rule answering a single statement.
func (e *Executor) Once(match string, res store.Result, row ...any) *Executor {
	e.Rules = append(e.Rules, Rule{Match: match, Result: res, Row: row, Times: 1})
	return e
}

// Matching returns the recorded statements containing substr.
func (e *Executor) Matching(substr string) []string {
	var out []string
	for _, s := range e.Statements {
		if strings.Contains(s, substr) {
			out = append(out, s)
		}
	}
	return out
}

// Reset forgets recorded statements, keeping the rules.
func (e *Executor) Reset() {
	e.Statements = nil
}

func (e *Executor) match(stmt string) (Rule, bool) {
	for i, r := range e.Rules {
		if !strings.Contains(stmt, r.Match) {
			continue
		}
		if r.Times > 0 {
			if r.Times == 1 {
				e.Rules = append(e.Rules[:i], e.Rules[i+1:]...)
			} else {
				e.Rules[i].Times--
			}
		}
		return r, true
	}
	return Rule{}, false
}

func assign(dest []any, row []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *int64:
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("scan: column %d is %T, want int64", i, v)
			}
			*d = n
		case *string:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("scan: column %d is %T, want string", i, v)
			}
			*d = s
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}
