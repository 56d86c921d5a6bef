// Package darwin decodes Darwin push-port XML and flattens each TS
// (train status) element into a sequence of per-location update tuples
// the running-train engine can apply, including Darwin's own six/eighteen
// hour day-offset heuristic (deliberately distinct from TRUST's rule; see
// internal/trust).
package darwin

import (
	"encoding/xml"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/timeutil"
)

// Envelope is the Pport root element, carrying either an update response
// or a snapshot response.
type Envelope struct {
	XMLName xml.Name         `xml:"Pport"`
	Ts      string           `xml:"ts,attr"`
	Version string           `xml:"version,attr"`
	Update  *UpdateResponse  `xml:"uR"`
	Snap    *SnapshotResponse `xml:"sR"`
}

// TSList returns the TS elements carried by whichever response is present.
func (e Envelope) TSList() []TS {
	switch {
	case e.Update != nil:
		return e.Update.TS
	case e.Snap != nil:
		return e.Snap.TS
	default:
		return nil
	}
}

type UpdateResponse struct {
	TS []TS `xml:"TS"`
}

type SnapshotResponse struct {
	TS []TS `xml:"TS"`
}

// TS is one train status update: a train's RID/UID/start date plus a
// sequence of forecast locations.
type TS struct {
	RID       string     `xml:"rid,attr"`
	UID       string     `xml:"uid,attr"`
	StartDate string     `xml:"ssd,attr"`
	Locations []Location `xml:"Location"`
}

// CircularTimes is a location's scheduled timing group: working/public
// times for arrival, departure, and pass.
type CircularTimes struct {
	WTA string `xml:"wta,attr,omitempty"`
	WTD string `xml:"wtd,attr,omitempty"`
	WTP string `xml:"wtp,attr,omitempty"`
	PTA string `xml:"pta,attr,omitempty"`
	PTD string `xml:"ptd,attr,omitempty"`
}

// Location is one forecast location within a TS.
type Location struct {
	TIPLOC string `xml:"tpl,attr"`
	CircularTimes
	Arr      *ArrDepPass   `xml:"arr"`
	Dep      *ArrDepPass   `xml:"dep"`
	Pass     *ArrDepPass   `xml:"pass"`
	Platform *PlatformData `xml:"plat"`
}

// ArrDepPass is the forecast data for one of a location's arrival,
// departure, or pass activities.
type ArrDepPass struct {
	ET        string `xml:"et,attr,omitempty"`
	WET       string `xml:"wet,attr,omitempty"`
	AT        string `xml:"at,attr,omitempty"`
	ATRemoved bool   `xml:"atRemoved,attr,omitempty"`
	ETMin     string `xml:"etmin,attr,omitempty"`
	Delayed   bool   `xml:"delayed,attr,omitempty"`
	Src       string `xml:"src,attr,omitempty"`
	SrcInst   string `xml:"srcInst,attr,omitempty"`
}

// PlatformData is a location's current platform number and its flags.
type PlatformData struct {
	Platform   string `xml:",chardata"`
	PlatSup    bool   `xml:"platsup,attr,omitempty"`
	CISPlatSup bool   `xml:"cisPlatsup,attr,omitempty"`
	PlatSrc    string `xml:"platsrc,attr,omitempty"`
	Conf       bool   `xml:"conf,attr,omitempty"`
}

// ParseDarwinTime parses a Darwin "HH:MM" or "HH:MM:SS" time-of-day; this
// is the same wire shape as model.Time's own JSON form, exposed here under
// the feed's own name for symmetry with ParseCIFTime.
func ParseDarwinTime(s string) (model.Time, error) {
	return model.ParseHHMM(s)
}

// Update is one flattened (tiploc, action) forecast ready for
// ApplyDarwinMovement.
type Update struct {
	TIPLOC           string       `json:"tiploc"`
	Action           model.Action `json:"action"`
	PlannedTime      model.Time   `json:"planned_time"`
	PlannedDayOffset int          `json:"planned_day_offset"`
	UpdatedTime      model.Time   `json:"updated_time"`
	TimeActual       bool         `json:"time_actual"`
	DelayUnknown     bool         `json:"delay_unknown"`
	Platform         string       `json:"platform,omitempty"`
	PlatSup          bool         `json:"platsup"`
	// ATRemoved signals a prior actual time was retracted at this
	// location/action; the engine should call RemoveDarwinActual rather
	// than ApplyDarwinMovement for this tuple.
	ATRemoved bool `json:"at_removed,omitempty"`
}

type activitySlot struct {
	apdp   *ArrDepPass
	action model.Action
	wt     string
}

// Flatten walks ts's locations in file order and produces one Update per
// arrival/departure/pass that carries a usable planned and effective
// time, recomputing day offsets with the signed-duration heuristic as it
// goes. Activities with neither an actual nor estimated time are skipped.
func Flatten(ts TS) ([]Update, error) {
	var out []Update
	var tracker timeutil.DarwinDayOffsetTracker
	for _, loc := range ts.Locations {
		slots := []activitySlot{
			{loc.Arr, model.ActionArrival, loc.WTA},
			{loc.Dep, model.ActionDeparture, loc.WTD},
			{loc.Pass, model.ActionPass, loc.WTP},
		}
		for _, slot := range slots {
			if slot.apdp == nil || slot.wt == "" {
				continue
			}
			planned, err := ParseDarwinTime(slot.wt)
			if err != nil {
				return nil, errors.Annotatef(err, "TS %s location %s", ts.RID, loc.TIPLOC)
			}
			dayOffset := tracker.Assign(planned)

			if slot.apdp.ATRemoved {
				out = append(out, Update{
					TIPLOC: loc.TIPLOC, Action: slot.action,
					PlannedTime: planned, PlannedDayOffset: dayOffset,
					ATRemoved: true,
				})
				continue
			}

			updatedStr, actual, ok := effectiveTime(slot.apdp)
			if !ok {
				continue
			}
			updated, err := ParseDarwinTime(updatedStr)
			if err != nil {
				return nil, errors.Annotatef(err, "TS %s location %s", ts.RID, loc.TIPLOC)
			}

			var platform string
			var platSup bool
			if loc.Platform != nil {
				platform = loc.Platform.Platform
				platSup = loc.Platform.PlatSup || loc.Platform.CISPlatSup
			}

			out = append(out, Update{
				TIPLOC:           loc.TIPLOC,
				Action:           slot.action,
				PlannedTime:      planned,
				PlannedDayOffset: dayOffset,
				UpdatedTime:      updated,
				TimeActual:       actual,
				DelayUnknown:     slot.apdp.Delayed,
				Platform:         platform,
				PlatSup:          platSup,
			})
		}
	}
	return out, nil
}

// effectiveTime picks the update time to apply: actual beats the working
// estimate, which beats the public estimate. Returns ok=false if none is
// present, meaning this activity carries no update worth applying.
func effectiveTime(a *ArrDepPass) (value string, actual bool, ok bool) {
	switch {
	case a.AT != "":
		return a.AT, true, true
	case a.WET != "":
		return a.WET, false, true
	case a.ET != "":
		return a.ET, false, true
	default:
		return "", false, false
	}
}
