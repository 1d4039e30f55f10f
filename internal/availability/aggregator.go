package availability

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
	"github.com/MrSnakeDoc/checkstore/internal/sqlstmt"
	"github.com/MrSnakeDoc/checkstore/internal/store"
)

// Table holds one row per entity and day.
const Table = "glpi_plugin_monitoring_availabilities"

var columns = []string{
	"is_downtime",
	"daily_0", "daily_1", "daily_2", "daily_3", "daily_4",
	"first_check_state", "first_check",
	"last_check_state", "last_check",
}

type dayEntry struct {
	row       *domain.DailyAvailability
	persisted bool
}

// Aggregator owns the current day row of every observed entity.
// It is driven by the host loop and is not safe for concurrent use.
type Aggregator struct {
	exec    store.Executor
	logger  logger.Logger
	loc     *time.Location
	now     func() time.Time
	current map[string]*dayEntry // entity key -> row of the most recent day
}

// NewAggregator creates an aggregator computing calendar days in loc.
func NewAggregator(exec store.Executor, log logger.Logger, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		exec:    exec,
		logger:  log,
		loc:     loc,
		now:     time.Now,
		current: make(map[string]*dayEntry),
	}
}

// Len returns the number of entities with a day row in memory.
func (a *Aggregator) Len() int {
	return len(a.current)
}

// Row returns the in-memory day row of an entity.
func (a *Aggregator) Row(host, service string) (*domain.DailyAvailability, bool) {
	e, ok := a.current[entityKey(host, service)]
	if !ok {
		return nil, false
	}
	return e.row, true
}

// Observe folds a check result into the entity's day row and persists it.
// The returned result is the outcome of the write, or of the load when that
// failed. A failed load leaves nothing cached, so the next observation
// selects the stored row again.
func (a *Aggregator) Observe(ctx context.Context, host, service string, d domain.EventData) store.Result {
	lastChk := d.LastCheckTime().In(a.loc)
	day := Midnight(lastChk)
	key := entityKey(host, service)

	entry, res := a.load(ctx, key, host, service, day)
	switch res.Outcome {
	case store.Applied:
	case store.NoRows:
		entry = &dayEntry{row: domain.NewDailyAvailability(host, service, day, Bucket(d.StateID), lastChk)}
	default:
		delete(a.current, key)
		return res
	}

	Accumulate(entry.row, d.StateID, lastChk, a.now(), d.InDowntime)
	a.current[key] = entry

	res = a.save(ctx, entry)
	if res.Outcome != store.Integrity || entry.persisted {
		return res
	}

	// The row was written by an earlier run: fold the check into the stored one.
	delete(a.current, key)
	stored, loaded := a.load(ctx, key, host, service, day)
	switch loaded.Outcome {
	case store.Applied:
	case store.Malformed, store.NotConnected, store.Failed:
		return loaded
	default:
		a.logFailure("insert", entry.row, res)
		return res
	}
	Accumulate(stored.row, d.StateID, lastChk, a.now(), d.InDowntime)
	a.current[key] = stored
	return a.save(ctx, stored)
}

// load returns the entity's row for day from memory or from the table.
// A row found in memory or in the table comes back Applied; NoRows means
// the day has no stored row yet.
func (a *Aggregator) load(ctx context.Context, key, host, service string, day time.Time) (*dayEntry, store.Result) {
	if e, ok := a.current[key]; ok && e.row.Day.Equal(day) {
		return e, store.Result{Outcome: store.Applied}
	}

	stmt, err := sqlstmt.Select(Table, columns, dayFilter(host, service, day))
	if err != nil {
		return nil, store.Result{Outcome: store.Malformed, Err: err}
	}

	var (
		downtime                   int64
		seconds                    [domain.StateCount]int64
		firstState, lastState      int64
		firstCheckText, lastChkTxt string
	)
	res := a.exec.QueryRow(ctx, stmt,
		&downtime,
		&seconds[0], &seconds[1], &seconds[2], &seconds[3], &seconds[4],
		&firstState, &firstCheckText,
		&lastState, &lastChkTxt,
	)
	metrics.RecordStatement(Table, res.Outcome.String())

	switch res.Outcome {
	case store.Applied:
	case store.NoRows, store.NotConnected:
		return nil, res
	default:
		a.logger.Error("availability load failed",
			logger.String("query", stmt),
			logger.String("outcome", res.Outcome.String()),
			logger.Error(res.Err))
		return nil, res
	}

	firstCheck, err1 := time.ParseInLocation(sqlstmt.DateTimeLayout, firstCheckText, a.loc)
	lastCheck, err2 := time.ParseInLocation(sqlstmt.DateTimeLayout, lastChkTxt, a.loc)
	if err := errors.Join(err1, err2); err != nil {
		// Buckets are kept. The checked buckets end at the last check.
		a.logger.Warn("unreadable availability check times, keeping stored buckets",
			logger.String("host", host),
			logger.String("service", service),
			logger.String("first_check", firstCheckText),
			logger.String("last_check", lastChkTxt),
			logger.Error(err))
		if err1 != nil {
			firstCheck = day
		}
		if err2 != nil {
			var checked int64
			for _, s := range seconds[:domain.StateUnchecked] {
				checked += s
			}
			lastCheck = day.Add(time.Duration(checked) * time.Second)
		}
	}

	return &dayEntry{
		persisted: true,
		row: &domain.DailyAvailability{
			HostName:        host,
			Service:         service,
			Day:             day,
			IsDowntime:      downtime != 0,
			Seconds:         seconds,
			FirstCheckState: int(firstState),
			FirstCheck:      firstCheck,
			LastCheckState:  int(lastState),
			LastCheck:       lastCheck,
		},
	}, res
}

func (a *Aggregator) save(ctx context.Context, e *dayEntry) store.Result {
	row := e.row
	cols := sqlstmt.Columns{}.
		Add("hostname", row.HostName).
		Add("service", row.Service).
		Add("day", sqlstmt.Day(row.Day)).
		Add("is_downtime", row.IsDowntime).
		Add("daily_0", row.Seconds[domain.StateGood]).
		Add("daily_1", row.Seconds[domain.StateBad]).
		Add("daily_2", row.Seconds[domain.StateCritical]).
		Add("daily_3", row.Seconds[domain.StateUnknown]).
		Add("daily_4", row.Seconds[domain.StateUnchecked]).
		Add("first_check_state", row.FirstCheckState).
		Add("first_check", row.FirstCheck).
		Add("last_check_state", row.LastCheckState).
		Add("last_check", row.LastCheck)

	if !e.persisted {
		stmt, err := sqlstmt.Insert(Table, cols)
		if err != nil {
			return store.Result{Outcome: store.Malformed, Err: err}
		}
		res := a.exec.Exec(ctx, stmt)
		metrics.RecordStatement(Table, res.Outcome.String())
		switch res.Outcome {
		case store.Applied:
			e.persisted = true
		case store.Integrity:
		default:
			a.logFailure("insert", row, res)
		}
		return res
	}

	stmt, err := sqlstmt.Update(Table, cols, dayFilter(row.HostName, row.Service, row.Day))
	if err != nil {
		return store.Result{Outcome: store.Malformed, Err: err}
	}
	res := a.exec.Exec(ctx, stmt)
	metrics.RecordStatement(Table, res.Outcome.String())
	if res.Outcome == store.Applied {
		e.persisted = true
	} else {
		a.logFailure("update", row, res)
	}
	return res
}

func (a *Aggregator) logFailure(op string, row *domain.DailyAvailability, res store.Result) {
	if res.Outcome == store.NotConnected {
		return
	}
	a.logger.Error("availability "+op+" failed",
		logger.String("host", row.HostName),
		logger.String("service", row.Service),
		logger.String("outcome", res.Outcome.String()),
		logger.Error(res.Err))
}

func dayFilter(host, service string, day time.Time) sqlstmt.Columns {
	return sqlstmt.Columns{}.
		Add("hostname", host).
		Add("service", service).
		Add("day", sqlstmt.Day(day))
}

func entityKey(host, service string) string {
	if service == "" {
		return host
	}
	return domain.ServiceKey(host, service)
}
