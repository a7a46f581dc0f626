package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateToken is the compact date layout used to select daily source files.
const DateToken = "20060102"

// DefaultEpoch is the reference date for all day offsets.
var DefaultEpoch = time.Date(1993, 1, 1, 0, 0, 0, 0, time.UTC)

// TimeIndexer converts calendar dates to day offsets and date windows.
type TimeIndexer struct {
	Epoch time.Time
}

// NewTimeIndexer returns an indexer for the given epoch, truncated to a UTC day.
func NewTimeIndexer(epoch time.Time) TimeIndexer {
	return TimeIndexer{Epoch: startOfDay(epoch)}
}

// DayOffset returns the signed number of whole days between the epoch and t.
// Dates before the epoch give negative offsets.
func (ti TimeIndexer) DayOffset(t time.Time) int {
	d := t.UTC().Sub(ti.Epoch)
	return int(math.Floor(d.Hours() / 24))
}

// Date returns the calendar date offset days after the epoch.
func (ti TimeIndexer) Date(offset int) time.Time {
	return ti.Epoch.AddDate(0, 0, offset)
}

// Window returns the 2*radius+1 consecutive dates centered on center, in
// ascending order, formatted as DateToken. The center sits at index radius.
func (ti TimeIndexer) Window(center string, radius int) ([]string, error) {
	if radius < 0 {
		return nil, fmt.Errorf("window radius %d: must not be negative", radius)
	}
	c, err := ParseDate(center)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, 2*radius+1)
	for i := -radius; i <= radius; i++ {
		tokens = append(tokens, c.AddDate(0, 0, i).Format(DateToken))
	}
	return tokens, nil
}

// ParseDate accepts RFC 3339 timestamps (fractional seconds allowed) and bare
// yyyy-mm-dd dates. The result is the calendar day as written, whatever the
// offset, at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
}

// WeeklyCenters returns the period centers from start to end inclusive, stepDays
// apart.
func WeeklyCenters(start, end time.Time, stepDays int) []time.Time {
	if stepDays <= 0 {
		return nil
	}
	start, end = startOfDay(start), startOfDay(end)
	var centers []time.Time
	for c := start; !c.After(end); c = c.AddDate(0, 0, stepDays) {
		centers = append(centers, c)
	}
	return centers
}

// YearDates returns every day of the given year as DateToken.
func YearDates(year int) []string {
	first := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(1, 0, 0)
	dates := make([]string, 0, 366)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateToken))
	}
	return dates
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
