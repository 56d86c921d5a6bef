// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model holds the data types shared by every railcore service:
// schedules and their movements, running trains and their movements, and
// reference (STANOX/TIPLOC/CRS) entries.
package model

import (
	"encoding/json"
	"time"

	"github.com/pingcap/errors"
)

// STPIndicator is the Short-Term-Planning precedence lattice, ordered so
// that the zero value sorts first: Cancellation < New < Overlay < Permanent.
type STPIndicator int

const (
	STPCancellation STPIndicator = iota
	STPNew
	STPOverlay
	STPPermanent
)

func (i STPIndicator) String() string {
	switch i {
	case STPCancellation:
		return "C"
	case STPNew:
		return "N"
	case STPOverlay:
		return "O"
	case STPPermanent:
		return "P"
	default:
		return "?"
	}
}

// ParseSTPIndicator parses one of the CIF letters C/N/O/P.
func ParseSTPIndicator(s string) (STPIndicator, error) {
	switch s {
	case "C":
		return STPCancellation, nil
	case "N":
		return STPNew, nil
	case "O":
		return STPOverlay, nil
	case "P":
		return STPPermanent, nil
	default:
		return 0, errors.Errorf("unknown STP indicator %q", s)
	}
}

func (i STPIndicator) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *STPIndicator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Trace(err)
	}
	v, err := ParseSTPIndicator(s)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Source identifies which feed a Schedule or TrainMvt came from.
type Source int

const (
	SourceITPS Source = iota
	SourceVSTP
	SourceDarwin
)

func (s Source) String() string {
	switch s {
	case SourceITPS:
		return "ITPS"
	case SourceVSTP:
		return "VSTP"
	case SourceDarwin:
		return "Darwin"
	default:
		return "?"
	}
}

// ParseSource parses one of ITPS/VSTP/Darwin, case-sensitively as emitted
// by String().
func ParseSource(s string) (Source, error) {
	switch s {
	case "ITPS":
		return SourceITPS, nil
	case "VSTP":
		return SourceVSTP, nil
	case "Darwin":
		return SourceDarwin, nil
	default:
		return 0, errors.Errorf("unknown schedule source %q", s)
	}
}

func (s Source) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Source) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.Trace(err)
	}
	v, err := ParseSource(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MvtSource identifies which feed a TrainMvt's time comes from. This is a
// superset of Source: schedule-derived baselines carry the sub-kind of
// schedule source they were copied from, and live updates carry TRUST,
// Darwin, or TrustNaive (a TRUST movement matched by naive time equality
// rather than an exact baseline, reserved for future use).
type MvtSource int

const (
	MvtSchedITPS MvtSource = iota
	MvtSchedDarwin
	MvtSchedVSTP
	MvtTRUST
	MvtDarwin
	MvtTrustNaive
)

func (s MvtSource) String() string {
	switch s {
	case MvtSchedITPS:
		return "SchedITPS"
	case MvtSchedDarwin:
		return "SchedDarwin"
	case MvtSchedVSTP:
		return "SchedVSTP"
	case MvtTRUST:
		return "TRUST"
	case MvtDarwin:
		return "Darwin"
	case MvtTrustNaive:
		return "TrustNaive"
	default:
		return "?"
	}
}

func (s MvtSource) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *MvtSource) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.Trace(err)
	}
	switch str {
	case "SchedITPS":
		*s = MvtSchedITPS
	case "SchedDarwin":
		*s = MvtSchedDarwin
	case "SchedVSTP":
		*s = MvtSchedVSTP
	case "TRUST":
		*s = MvtTRUST
	case "Darwin":
		*s = MvtDarwin
	case "TrustNaive":
		*s = MvtTrustNaive
	default:
		return errors.Errorf("unknown movement source %q", str)
	}
	return nil
}

// SchedSourceFor returns the MvtSource a freshly-activated TrainMvt should
// carry for movements copied from a schedule with the given Source.
func SchedSourceFor(src Source) MvtSource {
	switch src {
	case SourceITPS:
		return MvtSchedITPS
	case SourceVSTP:
		return MvtSchedVSTP
	case SourceDarwin:
		return MvtSchedDarwin
	default:
		return MvtSchedITPS
	}
}

// Action is what happens to a train at a location: arrival, departure, or
// a non-stopping pass.
type Action int

const (
	ActionArrival Action = iota
	ActionDeparture
	ActionPass
)

func (a Action) String() string {
	switch a {
	case ActionArrival:
		return "arrival"
	case ActionDeparture:
		return "departure"
	case ActionPass:
		return "pass"
	default:
		return "?"
	}
}

func (a Action) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Trace(err)
	}
	switch s {
	case "arrival":
		*a = ActionArrival
	case "departure":
		*a = ActionDeparture
	case "pass":
		*a = ActionPass
	default:
		return errors.Errorf("unknown action %q", s)
	}
	return nil
}

// Weekdays is a Mon..Sun bitmask, bit 0 = Monday.
type Weekdays uint8

const (
	Monday Weekdays = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdaysFromCIF parses a 7-character '0'/'1' string in Mon..Sun order, the
// format CIF schedule records use.
func WeekdaysFromCIF(s string) (Weekdays, error) {
	if len(s) != 7 {
		return 0, errors.Errorf("weekday string must be 7 chars, got %q", s)
	}
	var w Weekdays
	for i, c := range s {
		switch c {
		case '1':
			w |= 1 << uint(i)
		case '0':
			// not running that day
		default:
			return 0, errors.Errorf("weekday string must be 0/1, got %q", s)
		}
	}
	return w, nil
}

// Covers reports whether w includes the given time.Weekday.
func (w Weekdays) Covers(day time.Weekday) bool {
	// time.Weekday is Sun=0..Sat=6; our bitmask is Mon=0..Sun=6.
	idx := (int(day) + 6) % 7
	return w&(1<<uint(idx)) != 0
}

func (w Weekdays) Empty() bool { return w == 0 }

// Schedule is one timetable version of one train.
type Schedule struct {
	VersionID       string       `json:"version_id"`
	UID             string       `json:"uid"`
	StartDate       Date         `json:"start_date"`
	EndDate         Date         `json:"end_date"`
	Weekdays        Weekdays     `json:"weekdays"`
	STPIndicator    STPIndicator `json:"stp_indicator"`
	Headcode        string       `json:"headcode,omitempty"`
	Source          Source       `json:"source"`
	FileSequence    *int64       `json:"file_sequence,omitempty"`
	DarwinRID       string       `json:"darwin_rid,omitempty"`
	CrossesMidnight bool         `json:"crosses_midnight"`
}

// Key is the natural key a store upserts/activates against.
func (s Schedule) Key() ScheduleKey {
	return ScheduleKey{UID: s.UID, StartDate: s.StartDate, STPIndicator: s.STPIndicator, Source: s.Source}
}

// ScheduleKey is the (uid, start_date, stp_indicator, source) natural key.
type ScheduleKey struct {
	UID          string
	StartDate    Date
	STPIndicator STPIndicator
	Source       Source
}

// ScheduleMvt is one ordered movement within a Schedule.
type ScheduleMvt struct {
	ScheduleVersionID string `json:"schedule_version_id"`
	TIPLOC            string `json:"tiploc"`
	Action            Action `json:"action"`
	WorkingTime       Time   `json:"working_time"`
	DayOffset         int    `json:"day_offset"`
	Platform          string `json:"platform,omitempty"`
	PublicTime        *Time  `json:"public_time,omitempty"`
}

// SortKey orders ScheduleMvts into physical traversal order: by day offset,
// then time-of-day, then action (so an arrival sorts before a departure at
// the same instant, matching real station dwell semantics).
func (m ScheduleMvt) SortKey() (int, Time, Action) {
	return m.DayOffset, m.WorkingTime, m.Action
}

// Train is a concrete running instance of a schedule on a date.
type Train struct {
	ID              string       `json:"id"`
	UID             string       `json:"uid"`
	StartDate       Date         `json:"start_date"`
	STPIndicator    STPIndicator `json:"stp_indicator"`
	Source          Source       `json:"source"`
	Date            Date         `json:"date"`
	TrustID         string       `json:"trust_id,omitempty"`
	DarwinRID       string       `json:"darwin_rid,omitempty"`
	Headcode        string       `json:"headcode,omitempty"`
	CrossesMidnight bool         `json:"crosses_midnight"`
	Terminated      bool         `json:"terminated"`
	Cancelled       bool         `json:"cancelled"`
	Activated       bool         `json:"activated"`
}

// Key is the parent schedule's natural key this Train was activated
// from, used by Query Fusion to tell whether a Train supersedes a given
// Schedule's own scheduled-only movements.
func (t Train) Key() ScheduleKey {
	return ScheduleKey{UID: t.UID, StartDate: t.StartDate, STPIndicator: t.STPIndicator, Source: t.Source}
}

// TrainMvt is an event on a running train.
type TrainMvt struct {
	ID            string    `json:"id"`
	TrainID       string    `json:"train_id"`
	Updates       string    `json:"updates,omitempty"`
	TIPLOC        string    `json:"tiploc"`
	Action        Action    `json:"action"`
	Actual        bool      `json:"actual"`
	Time          Time      `json:"time"`
	DayOffset     int       `json:"day_offset"`
	PublicTime    *Time     `json:"public_time,omitempty"`
	Source        MvtSource `json:"source"`
	Platform      string    `json:"platform,omitempty"`
	PlatformSuppr bool      `json:"platform_suppress"`
	UnknownDelay  bool      `json:"unknown_delay"`
}

// IsBaseline reports whether this TrainMvt is a baseline (has no updates
// pointer) rather than a live update on top of one.
func (m TrainMvt) IsBaseline() bool { return m.Updates == "" }

// ReferenceEntry maps between a station's various identifiers.
type ReferenceEntry struct {
	STANOX string `json:"stanox,omitempty"`
	TIPLOC string `json:"tiploc,omitempty"`
	CRS    string `json:"crs,omitempty"`
	UIC    string `json:"uic,omitempty"`
	NLC    string `json:"nlc,omitempty"`
	Name   string `json:"name,omitempty"`
}
