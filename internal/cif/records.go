package cif

import (
	"encoding/json"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

// TimetableRecord is the feed's per-file metadata header: the sequence
// number and timestamp the schedule store's RecordIngestFile guards on,
// plus the publishing owner.
type TimetableRecord struct {
	Sequence  int64  `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
	Owner     string `json:"owner,omitempty"`
}

// TiplocRecord introduces or amends one timing-point location. The
// reference resolver is its consumer, not the schedule store.
type TiplocRecord struct {
	TIPLOC      string `json:"tiploc"`
	STANOX      string `json:"stanox,omitempty"`
	NLC         string `json:"nlc,omitempty"`
	CRS         string `json:"crs,omitempty"`
	Description string `json:"description,omitempty"`
}

// ToReferenceEntry maps a TiplocRecord onto the shared reference shape.
func (t TiplocRecord) ToReferenceEntry() model.ReferenceEntry {
	return model.ReferenceEntry{
		STANOX: t.STANOX,
		TIPLOC: t.TIPLOC,
		CRS:    t.CRS,
		NLC:    t.NLC,
		Name:   t.Description,
	}
}

// Transaction types carried on a ScheduleRecord. The feed never updates
// in place: an update arrives as a Create for a key that already exists,
// which the store's Upsert resolves.
const (
	TransactionCreate = "Create"
	TransactionDelete = "Delete"
)

// Line is one decoded line of the schedule feed. Exactly one field is
// non-nil. Association records are carried undecoded: the core does not
// require them, but a Line still identifies them so an adapter can count
// or skip them deliberately rather than by parse failure.
type Line struct {
	Timetable   *TimetableRecord `json:"JsonTimetableV1,omitempty"`
	Schedule    *ScheduleRecord  `json:"JsonScheduleV1,omitempty"`
	Tiploc      *TiplocRecord    `json:"TiplocV1,omitempty"`
	Association json.RawMessage  `json:"JsonAssociationV1,omitempty"`
	EOF         json.RawMessage  `json:"EOF,omitempty"`
}

// IsEOF reports whether the line is the feed's end-of-file marker.
func (l Line) IsEOF() bool { return l.EOF != nil }

// DecodeLine decodes one JSON object of the schedule feed. A line that
// matches none of the known record kinds is an error; the caller should
// log it and continue with the next line rather than abandon the file.
func DecodeLine(data []byte) (Line, error) {
	var line Line
	if err := json.Unmarshal(data, &line); err != nil {
		return Line{}, errors.Annotate(err, "decode schedule feed line")
	}
	if line.Timetable == nil && line.Schedule == nil && line.Tiploc == nil && line.Association == nil && line.EOF == nil {
		return Line{}, errors.New("schedule feed line matches no known record kind")
	}
	return line, nil
}
