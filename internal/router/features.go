package router

import "sync/atomic"

// Feature is one of the optional record writers.
type Feature int

const (
	FeatureStateTable Feature = iota
	FeatureLogEvents
	FeatureEntityTable
	FeatureAcknowledgements
	FeatureAvailability

	featureCount
)

var featureNames = [featureCount]string{
	FeatureStateTable:       "state_table",
	FeatureLogEvents:        "log_events",
	FeatureEntityTable:      "entity_table",
	FeatureAcknowledgements: "acknowledgements",
	FeatureAvailability:     "availability",
}

func (f Feature) String() string {
	if f < 0 || f >= featureCount {
		return "unknown"
	}
	return featureNames[f]
}

// Features selects which records are written.
type Features struct {
	StateTable       bool
	LogEvents        bool
	EntityTable      bool
	Acknowledgements bool
	Availability     bool
}

// featureSet holds the live flags. A flag only ever goes from on to off,
// and may be read from other goroutines. tripped marks flags switched off
// after a malformed statement.
type featureSet struct {
	on      [featureCount]atomic.Bool
	tripped [featureCount]atomic.Bool
}

func newFeatureSet(f Features) *featureSet {
	s := &featureSet{}
	s.on[FeatureStateTable].Store(f.StateTable)
	s.on[FeatureLogEvents].Store(f.LogEvents)
	s.on[FeatureEntityTable].Store(f.EntityTable)
	s.on[FeatureAcknowledgements].Store(f.Acknowledgements)
	s.on[FeatureAvailability].Store(f.Availability)
	return s
}

func (s *featureSet) enabled(f Feature) bool {
	return s.on[f].Load()
}

// disable reports whether the flag was on.
func (s *featureSet) disable(f Feature) bool {
	if !s.on[f].Swap(false) {
		return false
	}
	s.tripped[f].Store(true)
	return true
}

func (s *featureSet) snapshot() map[string]bool {
	out := make(map[string]bool, featureCount)
	for f := Feature(0); f < featureCount; f++ {
		out[f.String()] = s.on[f].Load()
	}
	return out
}

func (s *featureSet) disabled() []string {
	var out []string
	for f := Feature(0); f < featureCount; f++ {
		if s.tripped[f].Load() {
			out = append(out, f.String())
		}
	}
	return out
}
