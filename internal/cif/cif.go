// Package cif decodes the typed JSON records an upstream ITPS/CIF feed
// adapter emits for a schedule (one schedule create, its origin,
// intermediate, and terminating locations) into the shared model types,
// including the midnight-crossing day offsets the schedule store requires.
package cif

import (
	"strconv"
	"strings"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/timeutil"
)

// LocationRecord is one CIF location (LO/LI/LT) within a schedule. Exactly
// one of Pass, or one-or-both of Arrival/Departure, is set: an origin
// carries only Departure, a terminus only Arrival, an intermediate stop
// carries both (or neither, if the train passes through non-stop, in
// which case Pass is set instead).
type LocationRecord struct {
	TIPLOC          string  `json:"tiploc"`
	Arrival         *string `json:"arrival,omitempty"`
	Departure       *string `json:"departure,omitempty"`
	Pass            *string `json:"pass,omitempty"`
	PublicArrival   *string `json:"public_arrival,omitempty"`
	PublicDeparture *string `json:"public_departure,omitempty"`
	Platform        string  `json:"platform,omitempty"`
}

// ScheduleRecord is one CIF schedule: its header fields and locations in
// file order.
type ScheduleRecord struct {
	// TransactionType is TransactionCreate or TransactionDelete; empty is
	// treated as a create, since the feed's deletes always carry it.
	TransactionType string           `json:"transaction_type,omitempty"`
	UID             string           `json:"uid"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	Weekdays        string           `json:"weekdays"`
	STPIndicator    string           `json:"stp_indicator"`
	Headcode        string           `json:"headcode,omitempty"`
	FileSequence    *int64           `json:"file_sequence,omitempty"`
	Locations       []LocationRecord `json:"locations"`
}

// IsDelete reports whether this record deletes a stored schedule rather
// than creating or replacing one. Delete records carry only the key
// fields; their Locations list is empty.
func (r ScheduleRecord) IsDelete() bool { return r.TransactionType == TransactionDelete }

// Key parses just the identifying tuple of the record, which is all a
// delete carries.
func (r ScheduleRecord) Key(source model.Source) (model.ScheduleKey, error) {
	startDate, err := model.ParseDate(r.StartDate)
	if err != nil {
		return model.ScheduleKey{}, errors.Annotatef(err, "schedule %s: start date", r.UID)
	}
	stp, err := model.ParseSTPIndicator(r.STPIndicator)
	if err != nil {
		return model.ScheduleKey{}, errors.Annotatef(err, "schedule %s: stp indicator", r.UID)
	}
	return model.ScheduleKey{UID: r.UID, StartDate: startDate, STPIndicator: stp, Source: source}, nil
}

// ParseCIFTime parses a CIF "HHMM" or half-minute "HHMMH" time-of-day.
func ParseCIFTime(s string) (model.Time, error) {
	half := strings.HasSuffix(s, "H")
	if half {
		s = strings.TrimSuffix(s, "H")
	}
	if len(s) != 4 {
		return 0, errors.Errorf("parse CIF time %q: expected 4 digits", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, errors.Annotatef(err, "parse CIF time %q", s)
	}
	m, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, errors.Annotatef(err, "parse CIF time %q", s)
	}
	sec := 0
	if half {
		sec = 30
	}
	return model.NewTime(h, m, sec), nil
}

type locationDraft struct {
	tiploc      string
	action      model.Action
	workingTime model.Time
	platform    string
	publicTime  *model.Time
}

// Build decodes rec into a schedule draft and its ordered movements,
// assigning working-time day offsets by the midnight-crossing rule. The
// returned Schedule has no VersionID: the store assigns one on ingest.
func Build(rec ScheduleRecord, source model.Source) (model.Schedule, []model.ScheduleMvt, error) {
	startDate, err := model.ParseDate(rec.StartDate)
	if err != nil {
		return model.Schedule{}, nil, errors.Annotatef(err, "schedule %s: start date", rec.UID)
	}
	endDate, err := model.ParseDate(rec.EndDate)
	if err != nil {
		return model.Schedule{}, nil, errors.Annotatef(err, "schedule %s: end date", rec.UID)
	}
	weekdays, err := model.WeekdaysFromCIF(rec.Weekdays)
	if err != nil {
		return model.Schedule{}, nil, errors.Annotatef(err, "schedule %s: weekdays", rec.UID)
	}
	stp, err := model.ParseSTPIndicator(rec.STPIndicator)
	if err != nil {
		return model.Schedule{}, nil, errors.Annotatef(err, "schedule %s: stp indicator", rec.UID)
	}

	drafts, err := buildLocationDrafts(rec)
	if err != nil {
		return model.Schedule{}, nil, errors.Annotatef(err, "schedule %s", rec.UID)
	}
	if len(drafts) == 0 {
		return model.Schedule{}, nil, errors.Errorf("schedule %s: has no locations", rec.UID)
	}

	times := make([]model.Time, len(drafts))
	for i, d := range drafts {
		times[i] = d.workingTime
	}
	offsets, crosses := timeutil.AssignCIFDayOffsets(times)

	mvts := make([]model.ScheduleMvt, len(drafts))
	for i, d := range drafts {
		mvts[i] = model.ScheduleMvt{
			TIPLOC:      d.tiploc,
			Action:      d.action,
			WorkingTime: d.workingTime,
			DayOffset:   offsets[i],
			Platform:    d.platform,
			PublicTime:  d.publicTime,
		}
	}

	sched := model.Schedule{
		UID:             rec.UID,
		StartDate:       startDate,
		EndDate:         endDate,
		Weekdays:        weekdays,
		STPIndicator:    stp,
		Headcode:        rec.Headcode,
		Source:          source,
		FileSequence:    rec.FileSequence,
		CrossesMidnight: crosses,
	}
	return sched, mvts, nil
}

func buildLocationDrafts(rec ScheduleRecord) ([]locationDraft, error) {
	var drafts []locationDraft
	for _, loc := range rec.Locations {
		if loc.Pass != nil {
			t, err := ParseCIFTime(*loc.Pass)
			if err != nil {
				return nil, errors.Annotatef(err, "location %s: pass", loc.TIPLOC)
			}
			drafts = append(drafts, locationDraft{tiploc: loc.TIPLOC, action: model.ActionPass, workingTime: t, platform: loc.Platform})
			continue
		}
		if loc.Arrival != nil {
			t, err := ParseCIFTime(*loc.Arrival)
			if err != nil {
				return nil, errors.Annotatef(err, "location %s: arrival", loc.TIPLOC)
			}
			pub, err := optionalCIFTime(loc.PublicArrival)
			if err != nil {
				return nil, errors.Annotatef(err, "location %s: public arrival", loc.TIPLOC)
			}
			drafts = append(drafts, locationDraft{tiploc: loc.TIPLOC, action: model.ActionArrival, workingTime: t, platform: loc.Platform, publicTime: pub})
		}
		if loc.Departure != nil {
			t, err := ParseCIFTime(*loc.Departure)
			if err != nil {
				return nil, errors.Annotatef(err, "location %s: departure", loc.TIPLOC)
			}
			pub, err := optionalCIFTime(loc.PublicDeparture)
			if err != nil {
				return nil, errors.Annotatef(err, "location %s: public departure", loc.TIPLOC)
			}
			drafts = append(drafts, locationDraft{tiploc: loc.TIPLOC, action: model.ActionDeparture, workingTime: t, platform: loc.Platform, publicTime: pub})
		}
	}
	return drafts, nil
}

func optionalCIFTime(s *string) (*model.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := ParseCIFTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
