// Package router dispatches monitoring events to the identity cache and the record writers.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/acknowledge"
	"github.com/MrSnakeDoc/checkstore/internal/availability"
	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/index"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
	"github.com/MrSnakeDoc/checkstore/internal/sqlstmt"
	"github.com/MrSnakeDoc/checkstore/internal/store"
	"github.com/MrSnakeDoc/checkstore/internal/writeback"
)

// Record tables written directly by the router.
const (
	StateTable          = "glpi_plugin_monitoring_shinken_states"
	HostTable           = "glpi_plugin_monitoring_hosts"
	ServiceTable        = "glpi_plugin_monitoring_services"
	ServiceCatalogTable = "glpi_plugin_monitoring_servicescatalogs"
)

// IdentityMirror keeps a copy of identities outside the process.
type IdentityMirror interface {
	SaveIdentity(ctx context.Context, id *domain.Identity) error
}

type handler func(ctx context.Context, ev domain.Event)

// Router owns the per-event processing. It is driven by the host loop.
type Router struct {
	cache    *index.IdentityCache
	exec     store.Executor
	agg      *availability.Aggregator
	closer   *acknowledge.Closer
	queue    *writeback.Queue
	mirror   IdentityMirror
	features *featureSet
	loc      *time.Location
	logger   logger.Logger
	handlers map[domain.Kind]handler
}

// Options wires a Router.
type Options struct {
	Cache    *index.IdentityCache
	Exec     store.Executor
	Queue    *writeback.Queue
	Mirror   IdentityMirror // optional
	Features Features
	Location *time.Location
	Logger   logger.Logger
}

// New creates a router. The aggregator and closer share the router's executor.
func New(opts Options) *Router {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	r := &Router{
		cache:    opts.Cache,
		exec:     opts.Exec,
		agg:      availability.NewAggregator(opts.Exec, opts.Logger, loc),
		closer:   acknowledge.NewCloser(opts.Exec, opts.Logger, loc),
		queue:    opts.Queue,
		mirror:   opts.Mirror,
		features: newFeatureSet(opts.Features),
		loc:      loc,
		logger:   opts.Logger,
	}
	r.handlers = map[domain.Kind]handler{
		domain.KindInitialHostStatus:    r.initialHostStatus,
		domain.KindInitialServiceStatus: r.initialServiceStatus,
		domain.KindHostCheckResult:      r.hostCheckResult,
		domain.KindServiceCheckResult:   r.serviceCheckResult,
	}
	return r
}

// Dispatch processes one event. Only an event of unknown kind is an error;
// statement failures are handled per record.
func (r *Router) Dispatch(ctx context.Context, ev domain.Event) error {
	h, ok := r.handlers[ev.Kind]
	if !ok {
		metrics.EventsRejected.WithLabelValues("unknown_kind").Inc()
		return fmt.Errorf("dispatch %s: %w", ev.Kind, domain.ErrUnknownKind)
	}
	metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()
	h(ctx, ev)
	return nil
}

// Enabled reports whether a record feature is still on. Safe for concurrent use.
func (r *Router) Enabled(f Feature) bool {
	return r.features.enabled(f)
}

// Features returns the live feature flags by name. Safe for concurrent use.
func (r *Router) Features() map[string]bool {
	return r.features.snapshot()
}

// Disabled lists the features switched off after a malformed statement.
// Safe for concurrent use.
func (r *Router) Disabled() []string {
	return r.features.disabled()
}

// Aggregator exposes the availability state for inspection.
func (r *Router) Aggregator() *availability.Aggregator {
	return r.agg
}

// Flush writes up to maxCount pending event log rows.
func (r *Router) Flush(ctx context.Context, maxCount int) int {
	n, res := r.queue.Flush(ctx, maxCount)
	if res.Outcome == store.Malformed {
		r.disable(FeatureLogEvents, writeback.Table, res)
	}
	return n
}

func (r *Router) initialHostStatus(ctx context.Context, ev domain.Event) {
	d := ev.Data
	id := r.cache.RecordHost(d.HostName, d.Customs)
	r.logger.Debug("initial host status",
		logger.String("host", d.HostName),
		logger.String("items_id", id.ItemsID))
	r.mirrorIdentity(ctx, id)
}

func (r *Router) initialServiceStatus(ctx context.Context, ev domain.Event) {
	d := ev.Data
	id := r.cache.RecordService(d.HostName, d.ServiceDescription, d.Customs)
	if id == nil {
		return
	}
	r.logger.Debug("initial service status",
		logger.String("service", id.Key),
		logger.String("items_id", id.ItemsID))
	r.mirrorIdentity(ctx, id)
}

func (r *Router) hostCheckResult(ctx context.Context, ev domain.Event) {
	d := ev.Data
	if r.Enabled(FeatureStateTable) {
		r.recordState(ctx, d.HostName, "", d)
	}

	id, ok := r.cache.Resolve(ev)
	if !ok {
		r.unresolved(ev)
		return
	}

	if r.Enabled(FeatureEntityTable) {
		r.updateHost(ctx, id, d)
	}
	if r.Enabled(FeatureAvailability) {
		r.observe(ctx, d.HostName, "", d)
	}
	if r.Enabled(FeatureAcknowledgements) {
		r.closeAcknowledgements(ctx, id, d)
	}
}

func (r *Router) serviceCheckResult(ctx context.Context, ev domain.Event) {
	d := ev.Data
	if r.Enabled(FeatureStateTable) {
		r.recordState(ctx, d.HostName, d.ServiceDescription, d)
	}

	_, hostOK := r.cache.ResolveHost(d.HostName)
	id, ok := r.cache.Resolve(ev)
	if !hostOK || !ok {
		r.unresolved(ev)
		return
	}

	if r.Enabled(FeatureLogEvents) {
		e := domain.NewLogEntry(id.ItemsID, d)
		e.Date = e.Date.In(r.loc)
		r.queue.Enqueue(e)
	}
	if r.Enabled(FeatureEntityTable) {
		r.updateService(ctx, id, d)
	}
	if r.Enabled(FeatureAvailability) {
		r.observe(ctx, d.HostName, d.ServiceDescription, d)
	}
	if r.Enabled(FeatureAcknowledgements) {
		r.closeAcknowledgements(ctx, id, d)
	}
}

// unresolved counts a check result whose entity has no external item id.
// Only the state table is recorded for it.
func (r *Router) unresolved(ev domain.Event) {
	metrics.EventsUnresolved.WithLabelValues(ev.Kind.String()).Inc()
	r.logger.Debug("unresolved entity, detail records skipped",
		logger.String("entity", ev.EntityKey()),
		logger.String("kind", ev.Kind.String()))
}

// recordState upserts the coarse state row kept for every entity, mapped or not.
func (r *Router) recordState(ctx context.Context, host, service string, d domain.EventData) {
	filter := sqlstmt.Columns{}.
		Add("hostname", host).
		Add("service", service)

	query, err := sqlstmt.Count(StateTable, filter)
	if err != nil {
		r.disable(FeatureStateTable, StateTable, store.Result{Outcome: store.Malformed, Err: err})
		return
	}

	var count int64
	res := r.exec.QueryRow(ctx, query, &count)
	metrics.RecordStatement(StateTable, res.Outcome.String())
	if !res.OK() {
		r.failed(FeatureStateTable, StateTable, query, res)
		return
	}

	cols := columns(filter, stateTableFields, d, r.loc)
	var stmt string
	if count > 0 {
		stmt, err = sqlstmt.Update(StateTable, cols, filter)
	} else {
		stmt, err = sqlstmt.Insert(StateTable, cols)
	}
	if err != nil {
		r.disable(FeatureStateTable, StateTable, store.Result{Outcome: store.Malformed, Err: err})
		return
	}
	r.run(ctx, FeatureStateTable, StateTable, stmt)
}

func (r *Router) updateHost(ctx context.Context, id *domain.Identity, d domain.EventData) {
	filter := sqlstmt.Columns{}.
		Add("items_id", id.ItemsID).
		Add("itemtype", id.ItemType)
	stmt, err := sqlstmt.Update(HostTable, columns(nil, hostTableFields, d, r.loc), filter)
	if err != nil {
		r.disable(FeatureEntityTable, HostTable, store.Result{Outcome: store.Malformed, Err: err})
		return
	}
	r.run(ctx, FeatureEntityTable, HostTable, stmt)
}

func (r *Router) updateService(ctx context.Context, id *domain.Identity, d domain.EventData) {
	table := ServiceTable
	if id.ItemType == domain.ItemTypeServiceCatalog {
		table = ServiceCatalogTable
	}
	filter := sqlstmt.Columns{}.Add("id", id.ItemsID)
	stmt, err := sqlstmt.Update(table, columns(nil, serviceTableFields, d, r.loc), filter)
	if err != nil {
		r.disable(FeatureEntityTable, table, store.Result{Outcome: store.Malformed, Err: err})
		return
	}
	r.run(ctx, FeatureEntityTable, table, stmt)
}

func (r *Router) observe(ctx context.Context, host, service string, d domain.EventData) {
	if res := r.agg.Observe(ctx, host, service, d); res.Outcome == store.Malformed {
		r.disable(FeatureAvailability, availability.Table, res)
	}
}

func (r *Router) closeAcknowledgements(ctx context.Context, id *domain.Identity, d domain.EventData) {
	if res, attempted := r.closer.Close(ctx, id, d); attempted && res.Outcome == store.Malformed {
		r.disable(FeatureAcknowledgements, acknowledge.Table, res)
	}
}

func (r *Router) mirrorIdentity(ctx context.Context, id *domain.Identity) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.SaveIdentity(ctx, id); err != nil {
		r.logger.Warn("failed to mirror identity",
			logger.String("key", id.Key),
			logger.Error(err))
	}
}

func (r *Router) run(ctx context.Context, f Feature, table, stmt string) store.Result {
	res := r.exec.Exec(ctx, stmt)
	metrics.RecordStatement(table, res.Outcome.String())
	if res.Outcome != store.Applied {
		r.failed(f, table, stmt, res)
	}
	return res
}

func (r *Router) failed(f Feature, table, stmt string, res store.Result) {
	switch res.Outcome {
	case store.NotConnected:
		return
	case store.Malformed:
		r.logger.Error("malformed statement",
			logger.String("table", table),
			logger.String("query", stmt),
			logger.Error(res.Err))
		r.disable(f, table, res)
	default:
		r.logger.Error("statement failed",
			logger.String("table", table),
			logger.String("outcome", res.Outcome.String()),
			logger.String("query", stmt),
			logger.Error(res.Err))
	}
}

// disable switches a feature off for the rest of the process lifetime.
func (r *Router) disable(f Feature, table string, res store.Result) {
	if !r.features.disable(f) {
		return
	}
	metrics.FeatureDisabled.WithLabelValues(f.String()).Inc()
	r.logger.Error("record feature disabled",
		logger.String("feature", f.String()),
		logger.String("table", table),
		logger.Error(res.Err))
}
