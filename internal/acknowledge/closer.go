// Package acknowledge expires open problem acknowledgements once an entity is healthy again.
package acknowledge

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
	"github.com/MrSnakeDoc/checkstore/internal/sqlstmt"
	"github.com/MrSnakeDoc/checkstore/internal/store"
)

// Table holds problem acknowledgements keyed by item id and type.
const Table = "glpi_plugin_monitoring_acknowledges"

// Closer issues the expiry update for resolved entities.
type Closer struct {
	exec   store.Executor
	logger logger.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewCloser creates a closer writing through exec. End times are rendered in loc.
func NewCloser(exec store.Executor, log logger.Logger, loc *time.Location) *Closer {
	if loc == nil {
		loc = time.Local
	}
	return &Closer{
		exec:   exec,
		logger: log,
		loc:    loc,
		now:    time.Now,
	}
}

// Close expires the entity's acknowledgements when d reports a good state.
// It runs on every good observation, re-asserting closure on rows already
// expired; matching no row is not an error.
// The second return value is false when nothing was attempted.
func (c *Closer) Close(ctx context.Context, id *domain.Identity, d domain.EventData) (store.Result, bool) {
	if !d.IsGood() || !id.Resolved() {
		return store.Result{}, false
	}

	stmt, err := sqlstmt.Update(Table,
		sqlstmt.Columns{}.
			Add("expired", true).
			Add("end_time", c.now().In(c.loc)),
		sqlstmt.Columns{}.
			Add("items_id", id.ItemsID).
			Add("itemtype", id.ItemType),
	)
	if err != nil {
		return store.Result{Outcome: store.Malformed, Err: err}, true
	}

	res := c.exec.Exec(ctx, stmt)
	metrics.RecordStatement(Table, res.Outcome.String())

	switch {
	case res.Outcome == store.Applied && res.RowsAffected > 0:
		c.logger.Info("acknowledgement closed",
			logger.String("entity", id.Key),
			logger.Int64("rows", res.RowsAffected))
	case res.Outcome != store.Applied && res.Outcome != store.NotConnected:
		c.logger.Error("acknowledgement update failed",
			logger.String("query", stmt),
			logger.String("outcome", res.Outcome.String()),
			logger.Error(res.Err))
	}
	return res, true
}
