package router

import (
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/sqlstmt"
)

// field maps one column to a value taken from a check result.
type field struct {
	column string
	value  func(d domain.EventData) any
}

func eventText(d domain.EventData) any     { return d.EventText() }
func stateLabel(d domain.EventData) any    { return d.State }
func stateID(d domain.EventData) any       { return d.StateID }
func stateType(d domain.EventData) any     { return d.StateType }
func lastCheck(d domain.EventData) any     { return d.LastCheckTime() }
func perfData(d domain.EventData) any      { return d.PerfData }
func latency(d domain.EventData) any       { return d.Latency }
func executionTime(d domain.EventData) any { return d.ExecutionTime }
func acknowledged(d domain.EventData) any  { return d.Acknowledged }

var hostTableFields = []field{
	{"event", eventText},
	{"state", stateLabel},
	{"state_type", stateType},
	{"last_check", lastCheck},
	{"perf_data", perfData},
	{"latency", latency},
	{"execution_time", executionTime},
	{"is_acknowledged", acknowledged},
}

var serviceTableFields = []field{
	{"event", eventText},
	{"state", stateLabel},
	{"state_type", stateType},
	{"last_check", lastCheck},
	{"is_acknowledged", acknowledged},
}

var stateTableFields = []field{
	{"state", stateID},
	{"state_type", stateType},
	{"last_output", eventText},
	{"last_check", lastCheck},
	{"last_perfdata", perfData},
	{"is_ack", acknowledged},
}

// columns renders fields after base, with times shown in loc.
func columns(base sqlstmt.Columns, fields []field, d domain.EventData, loc *time.Location) sqlstmt.Columns {
	cols := make(sqlstmt.Columns, 0, len(base)+len(fields))
	cols = append(cols, base...)
	for _, f := range fields {
		v := f.value(d)
		if t, ok := v.(time.Time); ok {
			v = t.In(loc)
		}
		cols = cols.Add(f.column, v)
	}
	return cols
}
