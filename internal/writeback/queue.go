// Package writeback buffers service event rows and writes them with bulk inserts.
package writeback

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
	"github.com/MrSnakeDoc/checkstore/internal/sqlstmt"
	"github.com/MrSnakeDoc/checkstore/internal/store"
)

const (
	// Table receives one row per service check result.
	Table = "glpi_plugin_monitoring_serviceevents"

	// DefaultMaxQueue bounds the pending rows when no limit is configured.
	DefaultMaxQueue = 100000
)

var columns = []string{
	"plugin_monitoring_services_id",
	"date",
	"event",
	"state",
	"state_type",
	"perf_data",
	"latency",
	"execution_time",
}

// Queue is a bounded FIFO of pending rows. When full, the oldest row is dropped.
// It has no timer of its own: the host loop decides when to flush.
type Queue struct {
	exec    store.Executor
	logger  logger.Logger
	max     int
	pending []domain.LogEntry
	dropped int64
	flushed int64
}

// NewQueue creates a queue holding at most max rows.
func NewQueue(exec store.Executor, log logger.Logger, max int) *Queue {
	if max <= 0 {
		max = DefaultMaxQueue
	}
	return &Queue{
		exec:   exec,
		logger: log,
		max:    max,
	}
}

// Enqueue appends a row, evicting the oldest one when the queue is full.
func (q *Queue) Enqueue(e domain.LogEntry) {
	if len(q.pending) >= q.max {
		q.pending = q.pending[1:]
		q.dropped++
		metrics.WritebackDropped.WithLabelValues("overflow").Inc()
		if q.dropped == 1 || q.dropped%1000 == 0 {
			q.logger.Warn("write-back queue full, dropping oldest rows",
				logger.Int("max", q.max),
				logger.Int64("dropped", q.dropped))
		}
	}
	q.pending = append(q.pending, e)
	metrics.WritebackQueueDepth.Set(float64(len(q.pending)))
}

// Len returns the number of pending rows.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Dropped returns the number of rows lost to overflow or failed flushes.
func (q *Queue) Dropped() int64 {
	return q.dropped
}

// Flushed returns the number of rows written.
func (q *Queue) Flushed() int64 {
	return q.flushed
}

// Flush dequeues up to maxCount rows and writes them with one statement.
// Dequeued rows are never requeued: when the statement fails they are lost.
func (q *Queue) Flush(ctx context.Context, maxCount int) (int, store.Result) {
	n := len(q.pending)
	if maxCount > 0 && n > maxCount {
		n = maxCount
	}
	if n == 0 {
		return 0, store.Result{Outcome: store.Applied}
	}

	batch := q.pending[:n:n]
	q.pending = q.pending[n:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	metrics.WritebackQueueDepth.Set(float64(len(q.pending)))

	rows := make([][]any, len(batch))
	for i, e := range batch {
		rows[i] = []any{
			e.ServiceItemsID,
			e.Date,
			e.Event,
			e.State,
			e.StateType,
			e.PerfData,
			e.Latency,
			e.ExecutionTime,
		}
	}

	stmt, err := sqlstmt.BulkInsert(Table, columns, rows)
	if err != nil {
		return n, q.lose(n, store.Result{Outcome: store.Malformed, Err: err})
	}

	start := time.Now()
	res := q.exec.Exec(ctx, stmt)
	metrics.WritebackFlushDuration.Observe(time.Since(start).Seconds())
	metrics.RecordStatement(Table, res.Outcome.String())

	if res.Outcome != store.Applied {
		return n, q.lose(n, res)
	}

	q.flushed += int64(n)
	metrics.WritebackFlushed.Add(float64(n))
	q.logger.Debug("write-back flushed",
		logger.Int("rows", n),
		logger.Int("pending", len(q.pending)),
		logger.Duration("elapsed", time.Since(start)))
	return n, res
}

func (q *Queue) lose(n int, res store.Result) store.Result {
	q.dropped += int64(n)
	metrics.WritebackDropped.WithLabelValues("flush_failed").Add(float64(n))
	q.logger.Error("write-back flush failed, rows dropped",
		logger.Int("rows", n),
		logger.String("outcome", res.Outcome.String()),
		logger.Error(res.Err))
	return res
}
