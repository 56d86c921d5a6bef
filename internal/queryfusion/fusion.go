// Package queryfusion implements Query Fusion: given a location, a
// time, and a window, it merges the Schedule Store's baseline timetable
// with the Running-Train Engine's live trains into one deduplicated view
// suitable for a departure board, and optionally enriches it with the
// Reference Resolver's station name.
package queryfusion

import (
	"context"
	"sort"

	"github.com/trainsplorer/railcore/internal/model"
)

// ScheduleMatch is one schedule movement through a queried location,
// mirroring internal/schedulestore.MatchThrough's wire shape.
type ScheduleMatch struct {
	Schedule model.Schedule    `json:"schedule"`
	Movement model.ScheduleMvt `json:"movement"`
}

// TrainMatch is one running train's baseline movement through a queried
// location, with any live updates, mirroring
// internal/trainengine.TrainMatch's wire shape.
type TrainMatch struct {
	Train    model.Train      `json:"train"`
	Baseline model.TrainMvt   `json:"baseline"`
	Updates  []model.TrainMvt `json:"updates"`
}

// ScheduleClient is Query Fusion's view of the Schedule Store.
type ScheduleClient interface {
	MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]ScheduleMatch, error)
}

// TrainClient is Query Fusion's view of the Running-Train Engine.
type TrainClient interface {
	MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]TrainMatch, error)
}

// ReferenceClient is Query Fusion's view of the Reference Resolver, used
// to enrich results with the queried location's name.
type ReferenceClient interface {
	TiplocName(ctx context.Context, tiploc string) (crs, name string, err error)
}

// Descriptor is one deduplicated movement through a location: either a
// scheduled-only service (no Train exists for it on this date) or the
// collapse of a running Train's baseline and any TRUST/Darwin updates.
type Descriptor struct {
	TIPLOC            string       `json:"tiploc"`
	Action            model.Action `json:"action"`
	EffectiveTime     model.Time   `json:"effective_time"`
	DayOffset         int          `json:"day_offset"`
	Actual            bool         `json:"actual"`
	Platform          string       `json:"platform,omitempty"`
	PlatformSuppress  bool         `json:"platform_suppress"`
	UnknownDelay      bool         `json:"unknown_delay"`
	ScheduledOnly     bool         `json:"scheduled_only"`
	ScheduleVersionID string       `json:"schedule_version_id,omitempty"`
	TrainID           string       `json:"train_id,omitempty"`
}

// MvtQueryResponse is the wire shape of one fused query: the queried
// location (with its CRS and human name when the Reference Resolver
// knows it) and the deduplicated descriptors through it.
type MvtQueryResponse struct {
	TIPLOC      string       `json:"tiploc"`
	CRS         string       `json:"crs,omitempty"`
	Name        string       `json:"name,omitempty"`
	Descriptors []Descriptor `json:"descriptors"`
}

// Fusion is Query Fusion's single entry point.
type Fusion struct {
	schedules ScheduleClient
	trains    TrainClient
	reference ReferenceClient
}

// New builds a Fusion. reference may be nil, in which case
// MovementsThroughNamed returns descriptors without a station name.
func New(schedules ScheduleClient, trains TrainClient, reference ReferenceClient) *Fusion {
	return &Fusion{schedules: schedules, trains: trains, reference: reference}
}

// MovementsThrough fetches live trains and scheduled movements through
// tiploc within the window, suppresses scheduled-only entries whose
// schedule has an activated Train on this date, collapses each train's
// baseline+updates into one descriptor, and sorts the result by
// (effective time, action).
func (f *Fusion) MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]Descriptor, error) {
	trainMatches, err := f.trains.MovementsThrough(ctx, tiploc, date, center, windowSecs)
	if err != nil {
		return nil, err
	}
	scheduleMatches, err := f.schedules.MovementsThrough(ctx, tiploc, date, center, windowSecs)
	if err != nil {
		return nil, err
	}

	activated := make(map[model.ScheduleKey]bool, len(trainMatches))
	for _, tm := range trainMatches {
		if tm.Train.Activated {
			activated[tm.Train.Key()] = true
		}
	}

	out := make([]Descriptor, 0, len(trainMatches)+len(scheduleMatches))
	for _, sm := range scheduleMatches {
		if activated[sm.Schedule.Key()] {
			continue
		}
		out = append(out, Descriptor{
			TIPLOC:            sm.Movement.TIPLOC,
			Action:            sm.Movement.Action,
			EffectiveTime:     sm.Movement.WorkingTime,
			DayOffset:         sm.Movement.DayOffset,
			Platform:          sm.Movement.Platform,
			ScheduledOnly:     true,
			ScheduleVersionID: sm.Schedule.VersionID,
		})
	}
	for _, tm := range trainMatches {
		out = append(out, collapse(tm))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EffectiveTime != out[j].EffectiveTime {
			return out[i].EffectiveTime < out[j].EffectiveTime
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

// MovementsThroughNamed wraps MovementsThrough in an MvtQueryResponse,
// enriched with the location's CRS and name when a Reference Resolver is
// configured. An unknown tiploc is not an error here: the movement data
// is the point of the query, the name is garnish.
func (f *Fusion) MovementsThroughNamed(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) (MvtQueryResponse, error) {
	descriptors, err := f.MovementsThrough(ctx, tiploc, date, center, windowSecs)
	if err != nil {
		return MvtQueryResponse{}, err
	}
	resp := MvtQueryResponse{TIPLOC: tiploc, Descriptors: descriptors}
	if f.reference != nil {
		if crs, name, err := f.reference.TiplocName(ctx, tiploc); err == nil {
			resp.CRS = crs
			resp.Name = name
		}
	}
	return resp, nil
}

// collapse folds a train's baseline and its TRUST/Darwin updates into a
// single descriptor: TRUST provides actual time and platform if
// present; Darwin provides the latest prediction only if no TRUST
// update exists; platform suppression is sticky across every
// contributor.
func collapse(tm TrainMatch) Descriptor {
	d := Descriptor{
		TIPLOC:           tm.Baseline.TIPLOC,
		Action:           tm.Baseline.Action,
		EffectiveTime:    tm.Baseline.Time,
		DayOffset:        tm.Baseline.DayOffset,
		Platform:         tm.Baseline.Platform,
		PlatformSuppress: tm.Baseline.PlatformSuppr,
		TrainID:          tm.Train.ID,
	}

	var trust, darwin *model.TrainMvt
	for i := range tm.Updates {
		u := &tm.Updates[i]
		if u.PlatformSuppr {
			d.PlatformSuppress = true
		}
		switch u.Source {
		case model.MvtTRUST:
			trust = u
		case model.MvtDarwin:
			darwin = u
		}
	}

	switch {
	case trust != nil:
		d.EffectiveTime = trust.Time
		d.Actual = true
		if trust.Platform != "" {
			d.Platform = trust.Platform
		}
	case darwin != nil:
		d.EffectiveTime = darwin.Time
		d.Actual = darwin.Actual
		d.UnknownDelay = darwin.UnknownDelay
		if darwin.Platform != "" {
			d.Platform = darwin.Platform
		}
	}
	return d
}
