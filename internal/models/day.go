package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the canonical textual form of a Day.
const DateFormat = "2006-01-02"

// ErrInvalidDay is returned when a date string cannot be parsed.
var ErrInvalidDay = errors.New("invalid date")

// dayLayouts are tried in order when parsing upstream dates. Only the
// calendar date part of a timestamp is kept.
var dayLayouts = []string{
	DateFormat,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Day is a calendar date expressed as the number of days since 1970-01-01.
type Day int64

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	u := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Day(u.Unix() / 86400)
}

// NewDay returns the Day for the given calendar date.
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Today returns the current calendar day in the local time zone.
func Today() Day {
	return DayOf(time.Now())
}

// ParseDay parses a date or an ISO-8601 timestamp into a Day.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DayOf(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// AddDays returns the day n days after d.
func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

func (d Day) String() string {
	return d.Time().Format(DateFormat)
}

// MarshalJSON encodes the day as "YYYY-MM-DD".
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON decodes a quoted date string.
func (d *Day) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDay, string(b))
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
