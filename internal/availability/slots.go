// Package availability computes bookable start times for a business day.
// All functions are pure: callers fetch busy intervals from the ledger
// or calendar and pass them in, so the same logic serves the single-day
// slot query, the batched capacity query and the write-time conflict
// re-check.
package availability

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span of occupied time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// ExpandBusy pads every busy interval with the buffer on both ends and
// clamps the result to business hours.  Intervals that fall entirely
// outside the business day are dropped.  The returned slice is sorted
// by start time.
func ExpandBusy(busy []Interval, buffer time.Duration, open, close time.Time) []Interval {
	out := make([]Interval, 0, len(busy))
	for _, iv := range busy {
		start := iv.Start.Add(-buffer)
		end := iv.End.Add(buffer)
		if start.Before(open) {
			start = open
		}
		if end.After(close) {
			end = close
		}
		if !start.Before(end) {
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// ComputeSlots returns every valid session start time between open and
// close, stepping by granularity.  A start time is valid when the whole
// [start, start+session) interval is free of every busy interval; busy
// intervals are expected to be pre-expanded via ExpandBusy.  A session
// longer than the business day yields an empty result, as does a busy
// set covering the full day.
func ComputeSlots(open, close time.Time, granularity, session time.Duration, busy []Interval) []time.Time {
	slots := []time.Time{}
	if granularity <= 0 || session <= 0 {
		return slots
	}
	last := close.Add(-session)
	if last.Before(open) {
		return slots
	}
	for t := open; !t.After(last); t = t.Add(granularity) {
		candidate := Interval{Start: t, End: t.Add(session)}
		free := true
		for _, iv := range busy {
			if candidate.Overlaps(iv) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, t)
		}
	}
	return slots
}

// Capacity estimates how many sessions still fit into the day without
// enumerating individual slots: the uninterrupted free minutes of each
// gap divided by session+buffer, floored, summed over all gaps.  It is
// used by the batched calendar overview where rendering every slot for
// many days would be wasteful.
func Capacity(open, close time.Time, session, buffer time.Duration, busy []Interval) int {
	if session <= 0 || !open.Before(close) {
		return 0
	}
	merged := merge(busy, open, close)
	per := session + buffer
	total := 0
	cursor := open
	for _, iv := range merged {
		if iv.Start.After(cursor) {
			total += int(iv.Start.Sub(cursor) / per)
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if close.After(cursor) {
		total += int(close.Sub(cursor) / per)
	}
	return total
}

// merge clamps intervals to [open, close), sorts them and coalesces
// overlapping or touching spans so free gaps can be measured.
func merge(busy []Interval, open, close time.Time) []Interval {
	clamped := make([]Interval, 0, len(busy))
	for _, iv := range busy {
		start, end := iv.Start, iv.End
		if start.Before(open) {
			start = open
		}
		if end.After(close) {
			end = close
		}
		if start.Before(end) {
			clamped = append(clamped, Interval{Start: start, End: end})
		}
	}
	sort.Slice(clamped, func(i, j int) bool { return clamped[i].Start.Before(clamped[j].Start) })
	merged := make([]Interval, 0, len(clamped))
	for _, iv := range clamped {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
