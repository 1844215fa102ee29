package report

import (
	"time"

	"github.com/google/uuid"
)

// Filter scopes a report. Date bounds are whole days, inclusive on both
// ends, interpreted in the given location (local time for the branch).
type Filter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	InstallerID *uuid.UUID
	JobID       *uuid.UUID
	Family      string
	Location    *time.Location
}

// CheckinRange converts the day bounds into the half-open [from, to)
// timestamp range the repository queries check-ins against.
func (f Filter) CheckinRange() (from, to *time.Time) {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	if f.DateFrom != nil {
		t := dayStart(*f.DateFrom, loc)
		from = &t
	}
	if f.DateTo != nil {
		t := dayStart(*f.DateTo, loc).AddDate(0, 0, 1)
		to = &t
	}
	return from, to
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
