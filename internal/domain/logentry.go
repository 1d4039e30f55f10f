package domain

import "time"

// LogEntry is one row of the append-only service events table.
type LogEntry struct {
	ServiceItemsID string
	Date           time.Time
	Event          string
	State          string
	StateType      string
	PerfData       string
	Latency        float64
	ExecutionTime  float64
}

// NewLogEntry builds the events table row for a service check result.
func NewLogEntry(itemsID string, d EventData) LogEntry {
	return LogEntry{
		ServiceItemsID: itemsID,
		Date:           d.LastCheckTime(),
		Event:          d.EventText(),
		State:          d.State,
		StateType:      d.StateType,
		PerfData:       d.PerfData,
		Latency:        d.Latency,
		ExecutionTime:  d.ExecutionTime,
	}
}
