package refresolver

import (
	"encoding/json"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

// CorpusEntry is one record of the CORPUS reference dataset. Every field
// is optional on the wire; an entry with all of them empty carries no
// information and is discarded during conversion.
type CorpusEntry struct {
	Stanox    string `json:"stanox,omitempty"`
	UIC       string `json:"uic,omitempty"`
	CRS       string `json:"crs,omitempty"`
	TIPLOC    string `json:"tiploc,omitempty"`
	NLC       string `json:"nlc,omitempty"`
	NLCDesc   string `json:"nlcdesc,omitempty"`
	NLCDesc16 string `json:"nlcdesc16,omitempty"`
}

// CorpusDocument is the dataset's envelope.
type CorpusDocument struct {
	Data []CorpusEntry `json:"TIPLOCDATA"`
}

// DecodeCorpus decodes a CORPUS document.
func DecodeCorpus(data []byte) (CorpusDocument, error) {
	var doc CorpusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return CorpusDocument{}, errors.Annotate(err, "decode CORPUS document")
	}
	return doc, nil
}

// FromCorpus converts CORPUS entries to reference entries, discarding
// the all-empty ones. The long NLC description wins over the 16-char
// abbreviation as the entry's name.
func FromCorpus(entries []CorpusEntry) []model.ReferenceEntry {
	out := make([]model.ReferenceEntry, 0, len(entries))
	for _, e := range entries {
		name := e.NLCDesc
		if name == "" {
			name = e.NLCDesc16
		}
		entry := model.ReferenceEntry{
			STANOX: e.Stanox,
			TIPLOC: e.TIPLOC,
			CRS:    e.CRS,
			UIC:    e.UIC,
			NLC:    e.NLC,
			Name:   name,
		}
		if entry == (model.ReferenceEntry{}) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// MSNEntry is one parsed master-station-names tuple. The fixed-column
// file format is handled upstream; this service consumes the tuples.
type MSNEntry struct {
	TIPLOC string `json:"tiploc"`
	CRS    string `json:"crs"`
	Name   string `json:"name"`
}

// FromMSN converts MSN tuples to reference entries.
func FromMSN(entries []MSNEntry) []model.ReferenceEntry {
	out := make([]model.ReferenceEntry, 0, len(entries))
	for _, e := range entries {
		if e.TIPLOC == "" && e.CRS == "" && e.Name == "" {
			continue
		}
		out = append(out, model.ReferenceEntry{TIPLOC: e.TIPLOC, CRS: e.CRS, Name: e.Name})
	}
	return out
}
