package availability

import "time"

// HasConflict decides whether a candidate session may be written.  The
// buffer is symmetric and additive to both sides: a candidate conflicts
// with an existing reservation when
//
//	candidateStart < existingEnd+buffer  AND  candidateEnd+buffer > existingStart
//
// This must run at write time against a fresh same-day query, not only
// at read time, to shrink the window between two customers seeing the
// same free slot and both submitting.
func HasConflict(candidateStart time.Time, session, buffer time.Duration, existing []Interval) bool {
	candidateEnd := candidateStart.Add(session)
	for _, iv := range existing {
		if candidateStart.Before(iv.End.Add(buffer)) && candidateEnd.Add(buffer).After(iv.Start) {
			return true
		}
	}
	return false
}
