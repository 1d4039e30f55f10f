// Package availability keeps per-entity daily state durations.
package availability

import (
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
)

// Midnight returns the start of the calendar day of t, in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Bucket maps a check state id to its duration bucket.
// Ids outside the checked range count as unknown.
func Bucket(stateID int) int {
	if stateID < domain.StateGood || stateID >= domain.StateUnchecked {
		return domain.StateUnknown
	}
	return stateID
}

// Accumulate applies one observation of state at lastChk to a day row.
//
// The time elapsed since the row's last check is measured against now, not
// against lastChk. When that interval reaches back before midnight the whole
// day so far is attributed to the observed state; otherwise the interval goes
// to the previously recorded state. The unchecked bucket absorbs the rest of
// the day and may go negative.
func Accumulate(row *domain.DailyAvailability, state int, lastChk, now time.Time, inDowntime bool) {
	state = Bucket(state)

	secondsSinceMidnight := int64(lastChk.Sub(row.Day) / time.Second)
	sinceLastState := int64(now.Sub(row.LastCheck) / time.Second)
	if sinceLastState < 0 {
		sinceLastState = 0
	}

	if sinceLastState > secondsSinceMidnight {
		row.Seconds[state] = secondsSinceMidnight
	} else {
		row.Seconds[Bucket(row.LastCheckState)] += sinceLastState
	}
	row.Seconds[domain.StateUnchecked] = domain.SecondsPerDay - row.Checked()

	row.LastCheckState = state
	row.LastCheck = lastChk
	row.IsDowntime = inDowntime
}
