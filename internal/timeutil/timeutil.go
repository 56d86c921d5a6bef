// Package timeutil holds the midnight-crossing day-offset algorithms
// shared by schedule ingestion and the Darwin update path. Both feeds hand
// the core a sequence of times-of-day with no explicit date; the core's
// job is to infer which ones have rolled past midnight.
package timeutil

import "github.com/trainsplorer/railcore/internal/model"

// AssignCIFDayOffsets implements the ITPS/CIF midnight-crossing rule: walk
// the locations in file order carrying a "last time" cursor, and whenever
// the next time is strictly less than the cursor, the schedule has crossed
// a midnight. Returns one day offset per input time, plus whether any
// crossing occurred at all.
func AssignCIFDayOffsets(times []model.Time) (offsets []int, crossesMidnight bool) {
	offsets = make([]int, len(times))
	offset := 0
	var last model.Time
	for i, t := range times {
		if i > 0 && t.Before(last) {
			offset++
		}
		offsets[i] = offset
		last = t
	}
	return offsets, offset >= 1
}

// darwinEarlyThreshold and darwinLateThreshold are the six/eighteen hour
// thresholds of the Darwin day-offset heuristic: the stream's times can
// arrive slightly out of order without indicating a real midnight
// crossing, so the heuristic only reacts to large jumps.
const (
	darwinEarlyThreshold = 6 * 3600
	darwinLateThreshold  = 18 * 3600
)

// DarwinDayOffsetTracker recomputes day offsets across a sequence of
// planned times-of-day using a signed-duration heuristic: large
// backward jumps increment the offset (midnight crossed
// forward), large forward jumps decrement it (a previous crossing is
// being corrected now that a later record arrived showing the "true"
// day). Construct one per TS being flattened; do not share across trains.
type DarwinDayOffsetTracker struct {
	dayOffset int
	lastTime  *model.Time
}

// Assign returns the day offset for planned, updating the tracker's
// internal cursor.
func (t *DarwinDayOffsetTracker) Assign(planned model.Time) int {
	if t.lastTime != nil {
		delta := planned.Sub(*t.lastTime)
		switch {
		case delta <= -darwinEarlyThreshold:
			t.dayOffset++
		case delta >= darwinLateThreshold:
			t.dayOffset--
		}
	}
	last := planned
	t.lastTime = &last
	return t.dayOffset
}
