package model

import (
	"encoding/json"
	"fmt"

	"github.com/pingcap/errors"
)

// Time is a time-of-day, stored as seconds since midnight, with no date or
// zone component of its own: day-crossing is tracked separately via each
// movement's DayOffset, per the schedule's working-time convention.
type Time int

// NewTime builds a Time from an hour/minute/second triple.
func NewTime(hour, minute, second int) Time {
	return Time(hour*3600 + minute*60 + second)
}

// ParseHHMM parses "HH:MM" or "HH:MM:SS".
func ParseHHMM(s string) (Time, error) {
	var h, m, sec int
	switch len(s) {
	case 5:
		if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
			return 0, errors.Annotatef(err, "parse time %q", s)
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%02d:%02d:%02d", &h, &m, &sec); err != nil {
			return 0, errors.Annotatef(err, "parse time %q", s)
		}
	default:
		return 0, errors.Errorf("parse time %q: unexpected length", s)
	}
	if h < 0 || h > 29 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, errors.Errorf("parse time %q: out of range", s)
	}
	return NewTime(h, m, sec), nil
}

// Hour, Minute, Second decompose the time-of-day. Hour may exceed 23, since
// ParseHHMM accepts hours up to 29.
func (t Time) Hour() int   { return int(t) / 3600 }
func (t Time) Minute() int { return (int(t) % 3600) / 60 }
func (t Time) Second() int { return int(t) % 60 }

func (t Time) String() string {
	if t.Second() == 0 {
		return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Before, After, Equal compare two times-of-day irrespective of day offset;
// callers that need midnight-aware ordering should compare (DayOffset, Time)
// pairs instead, e.g. via ScheduleMvt.SortKey.
func (t Time) Before(other Time) bool { return t < other }
func (t Time) After(other Time) bool  { return t > other }
func (t Time) Equal(other Time) bool  { return t == other }

// Sub returns t-other in seconds.
func (t Time) Sub(other Time) int { return int(t) - int(other) }

func (t Time) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Trace(err)
	}
	v, err := ParseHHMM(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
