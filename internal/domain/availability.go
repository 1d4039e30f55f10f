package domain

import "time"

// State ids used as bucket indexes of a day's duration accounting.
const (
	StateGood = iota
	StateBad
	StateCritical
	StateUnknown
	StateUnchecked

	StateCount
)

// SecondsPerDay is the total of all buckets of a fully elapsed day.
const SecondsPerDay = 86400

// DailyAvailability accumulates per-state durations for one entity on one day.
type DailyAvailability struct {
	HostName        string
	Service         string
	Day             time.Time // midnight, in the aggregator's location
	IsDowntime      bool
	Seconds         [StateCount]int64
	FirstCheckState int
	FirstCheck      time.Time
	LastCheckState  int
	LastCheck       time.Time
}

// NewDailyAvailability returns a day row with the whole day unchecked.
func NewDailyAvailability(host, service string, day time.Time, state int, lastChk time.Time) *DailyAvailability {
	d := &DailyAvailability{
		HostName:        host,
		Service:         service,
		Day:             day,
		FirstCheckState: state,
		FirstCheck:      lastChk,
		LastCheckState:  state,
		LastCheck:       lastChk,
	}
	d.Seconds[StateUnchecked] = SecondsPerDay
	return d
}

// Checked returns the sum of the four checked buckets.
func (d *DailyAvailability) Checked() int64 {
	var sum int64
	for i := StateGood; i < StateUnchecked; i++ {
		sum += d.Seconds[i]
	}
	return sum
}

// Total returns the sum of all buckets.
func (d *DailyAvailability) Total() int64 {
	return d.Checked() + d.Seconds[StateUnchecked]
}
