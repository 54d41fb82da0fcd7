package model

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewInterval(start time.Time, hours int) Interval {
	return Interval{Start: start, End: start.Add(time.Duration(hours) * time.Hour)}
}

// Overlaps reports whether the two ranges share any instant. Ranges that only
// touch at a boundary do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}
