package scheduler

import (
	"sync/atomic"
	"time"
)

// Stats is published by the host loop and read by the HTTP server.
type Stats struct {
	batches          atomic.Int64
	events           atomic.Int64
	rejected         atomic.Int64
	sourceErrors     atomic.Int64
	lastBatch        atomic.Int64 // unix nanoseconds
	pending          atomic.Int64
	flushed          atomic.Int64
	dropped          atomic.Int64
	hosts            atomic.Int64
	services         atomic.Int64
	resolvedHosts    atomic.Int64
	resolvedServices atomic.Int64
	availability     atomic.Int64
	running          atomic.Bool
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Running          bool      `json:"running"`
	Batches          int64     `json:"batches"`
	Events           int64     `json:"events"`
	Rejected         int64     `json:"rejected"`
	SourceErrors     int64     `json:"source_errors"`
	LastBatch        time.Time `json:"last_batch,omitempty"`
	PendingLogRows   int64     `json:"pending_log_rows"`
	FlushedLogRows   int64     `json:"flushed_log_rows"`
	DroppedLogRows   int64     `json:"dropped_log_rows"`
	Hosts            int64     `json:"hosts"`
	Services         int64     `json:"services"`
	ResolvedHosts    int64     `json:"resolved_hosts"`
	ResolvedServices int64     `json:"resolved_services"`
	AvailabilityRows int64     `json:"availability_rows"`
}

// Snapshot copies the current values.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Running:          s.running.Load(),
		Batches:          s.batches.Load(),
		Events:           s.events.Load(),
		Rejected:         s.rejected.Load(),
		SourceErrors:     s.sourceErrors.Load(),
		PendingLogRows:   s.pending.Load(),
		FlushedLogRows:   s.flushed.Load(),
		DroppedLogRows:   s.dropped.Load(),
		Hosts:            s.hosts.Load(),
		Services:         s.services.Load(),
		ResolvedHosts:    s.resolvedHosts.Load(),
		ResolvedServices: s.resolvedServices.Load(),
		AvailabilityRows: s.availability.Load(),
	}
	if ns := s.lastBatch.Load(); ns > 0 {
		snap.LastBatch = time.Unix(0, ns)
	}
	return snap
}

// Running reports whether the host loop is consuming events.
func (s *Stats) Running() bool {
	return s.running.Load()
}
