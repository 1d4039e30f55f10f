// Package scheduler runs the host loop that drives event processing.
package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/index"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
	"github.com/MrSnakeDoc/checkstore/internal/queue"
	"github.com/MrSnakeDoc/checkstore/internal/writeback"
)

const (
	// DefaultFlushPeriod is used when no flush period is configured.
	DefaultFlushPeriod = 5 * time.Second
	// DefaultFlushMaxRows is used when no flush size is configured.
	DefaultFlushMaxRows = 1000

	sourceErrorBackoff = time.Second
)

// Connection is the database session retested between batches.
type Connection interface {
	Retest(ctx context.Context) bool
	Connected() bool
}

// Dispatcher processes single events and flushes the event log.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) error
	Flush(ctx context.Context, maxCount int) int
}

// LoopOptions wires the host loop.
type LoopOptions struct {
	Source       queue.Source
	Dispatcher   Dispatcher
	Queue        *writeback.Queue
	Cache        *index.IdentityCache
	DB           Connection
	Availability interface{ Len() int } // optional
	FlushPeriod  time.Duration
	FlushMaxRows int
	Logger       logger.Logger
}

// Loop dequeues batches and processes their events one at a time, in order.
// Between batches it retests the database connection and flushes the event
// log when the flush period elapsed or enough rows are pending.
type Loop struct {
	opts      LoopOptions
	stats     *Stats
	now       func() time.Time
	lastFlush time.Time
}

// NewLoop creates the host loop.
func NewLoop(opts LoopOptions) *Loop {
	if opts.FlushPeriod <= 0 {
		opts.FlushPeriod = DefaultFlushPeriod
	}
	if opts.FlushMaxRows <= 0 {
		opts.FlushMaxRows = DefaultFlushMaxRows
	}
	return &Loop{
		opts:  opts,
		stats: &Stats{},
		now:   time.Now,
	}
}

// Stats returns the counters published by the loop.
func (l *Loop) Stats() *Stats {
	return l.stats
}

// Run consumes events until ctx is cancelled. Cancellation is observed once
// per batch; statements already started run to completion, and pending log
// rows get a last flush before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	log := l.opts.Logger
	work := context.WithoutCancel(ctx)

	l.lastFlush = l.now()
	l.stats.running.Store(true)
	defer l.stats.running.Store(false)

	log.Info("host loop started",
		logger.Duration("flush_period", l.opts.FlushPeriod),
		logger.Int("flush_max_rows", l.opts.FlushMaxRows))

	for ctx.Err() == nil {
		events, err := l.opts.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.stats.sourceErrors.Add(1)
			log.Error("failed to read events", logger.Error(err))
			l.pause(ctx, sourceErrorBackoff)
		} else if len(events) > 0 {
			l.process(work, events)
		}

		l.opts.DB.Retest(work)
		l.maybeFlush(work)
		l.publish()
	}

	l.drain(work)
	l.publish()
	log.Info("host loop stopped")
	return nil
}

func (l *Loop) process(ctx context.Context, events []domain.Event) {
	start := l.now()
	for _, ev := range events {
		if err := l.opts.Dispatcher.Dispatch(ctx, ev); err != nil {
			l.stats.rejected.Add(1)
			l.opts.Logger.Warn("event rejected", logger.Error(err))
			continue
		}
		l.stats.events.Add(1)
	}
	elapsed := l.now().Sub(start)

	l.stats.batches.Add(1)
	l.stats.lastBatch.Store(l.now().UnixNano())
	metrics.RecordBatch(len(events), elapsed)
	l.opts.Logger.Debug("batch processed",
		logger.Int("events", len(events)),
		logger.Duration("elapsed", elapsed))
}

func (l *Loop) maybeFlush(ctx context.Context) {
	pending := l.opts.Queue.Len()
	due := l.now().Sub(l.lastFlush) >= l.opts.FlushPeriod
	if !due && pending < l.opts.FlushMaxRows {
		return
	}
	l.lastFlush = l.now()
	if pending > 0 {
		l.opts.Dispatcher.Flush(ctx, l.opts.FlushMaxRows)
	}
}

// drain flushes what is left on shutdown, as long as the database accepts it.
func (l *Loop) drain(ctx context.Context) {
	for l.opts.Queue.Len() > 0 {
		if !l.opts.DB.Connected() {
			l.opts.Logger.Warn("database unavailable at shutdown, pending log rows lost",
				logger.Int("rows", l.opts.Queue.Len()))
			return
		}
		before := l.opts.Queue.Dropped()
		if n := l.opts.Dispatcher.Flush(ctx, l.opts.FlushMaxRows); n == 0 {
			return
		}
		if l.opts.Queue.Dropped() > before {
			return
		}
	}
}

func (l *Loop) publish() {
	s := l.stats
	s.pending.Store(int64(l.opts.Queue.Len()))
	s.flushed.Store(l.opts.Queue.Flushed())
	s.dropped.Store(l.opts.Queue.Dropped())

	hosts, services, resolvedHosts, resolvedServices := l.opts.Cache.Counts()
	s.hosts.Store(int64(hosts))
	s.services.Store(int64(services))
	s.resolvedHosts.Store(int64(resolvedHosts))
	s.resolvedServices.Store(int64(resolvedServices))
	metrics.RecordIdentities(hosts, services, resolvedHosts, resolvedServices)

	if l.opts.Availability != nil {
		s.availability.Store(int64(l.opts.Availability.Len()))
	}
}

func (l *Loop) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
