package domain

import (
	"errors"
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp so
// that string comparison in SQL matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DayLayout is the storage layout for calendar days.
const DayLayout = "2006-01-02"

var ErrBadDate = errors.New("invalid date")

func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// ParseTime parses a stored timestamp. Empty input yields the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", DayLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Day drops the time of day, keeping the calendar date in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts either a bare date or an RFC 3339 timestamp and returns the
// calendar day it falls on.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrBadDate
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Day(t), nil
	}
	return time.Time{}, ErrBadDate
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange parses both ends and rejects an end before the start.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: s, End: e}
	if !r.Valid() {
		return DateRange{}, ErrBadDate
	}
	return r, nil
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Days counts rental days including both the first and last day.
func (r DateRange) Days() int {
	d := int(Day(r.End).Sub(Day(r.Start)).Hours()/24) + 1
	if d < 1 {
		return 1
	}
	return d
}
