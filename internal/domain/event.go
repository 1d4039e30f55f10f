package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies one of the event types the pipeline understands.
type Kind int

const (
	KindInitialHostStatus Kind = iota + 1
	KindInitialServiceStatus
	KindHostCheckResult
	KindServiceCheckResult
)

// ErrUnknownKind is returned for event types outside the four handled kinds.
var ErrUnknownKind = errors.New("unknown event kind")

var kindNames = map[Kind]string{
	KindInitialHostStatus:    "initial_host_status",
	KindInitialServiceStatus: "initial_service_status",
	KindHostCheckResult:      "host_check_result",
	KindServiceCheckResult:   "service_check_result",
}

// ParseKind maps a wire event type to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsService reports whether the kind targets a host/service pair.
func (k Kind) IsService() bool {
	return k == KindInitialServiceStatus || k == KindServiceCheckResult
}

// Event is a decoded monitoring event.
type Event struct {
	Kind Kind
	Data EventData
}

// EventData is the flat field set shared by snapshot and check-result events.
// Field names on the wire follow the monitoring daemon's brok format.
type EventData struct {
	HostName           string            `json:"host_name"`
	ServiceDescription string            `json:"service_description,omitempty"`
	State              string            `json:"state"`
	StateID            int               `json:"state_id"`
	LastStateID        int               `json:"last_state_id"`
	StateType          string            `json:"state_type"`
	LastCheck          int64             `json:"last_chk"`
	Output             string            `json:"output"`
	LongOutput         string            `json:"long_output"`
	PerfData           string            `json:"perf_data"`
	Latency            float64           `json:"latency"`
	ExecutionTime      float64           `json:"execution_time"`
	Acknowledged       bool              `json:"problem_has_been_acknowledged"`
	InDowntime         bool              `json:"in_scheduled_downtime"`
	Customs            map[string]string `json:"customs,omitempty"`
}

// LastCheckTime returns last_chk as a time.
func (d EventData) LastCheckTime() time.Time {
	return time.Unix(d.LastCheck, 0)
}

// EventText joins output and long output the way the record tables expect.
func (d EventData) EventText() string {
	if len(d.LongOutput) > 0 {
		return d.Output + " \n " + d.LongOutput
	}
	return d.Output
}

// IsGood reports whether the observed state is UP (hosts) or OK (services).
func (d EventData) IsGood() bool {
	return d.StateID == StateGood
}

// EntityKey returns the cache key of the entity the event is about.
func (e Event) EntityKey() string {
	if e.Kind.IsService() {
		return ServiceKey(e.Data.HostName, e.Data.ServiceDescription)
	}
	return e.Data.HostName
}
