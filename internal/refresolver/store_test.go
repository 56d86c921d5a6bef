package refresolver

import (
	"context"
	"testing"

	"github.com/pingcap/check"

	"github.com/trainsplorer/railcore/internal/dbutil"
	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type refSuite struct{}

var _ = check.Suite(&refSuite{})

func newTestStore(c *check.C) *Store {
	db, err := dbutil.Open(context.Background(), dbutil.Config{Path: ":memory:"})
	c.Assert(err, check.IsNil)
	store := New(db)
	c.Assert(store.Init(context.Background()), check.IsNil)
	return store
}

func sampleEntries() []model.ReferenceEntry {
	return []model.ReferenceEntry{
		{STANOX: "87219", TIPLOC: "CLPHMJC", CRS: "CLJ", Name: "Clapham Junction"},
		{STANOX: "87219", TIPLOC: "CLPHMJ2", CRS: "CLJ", Name: "Clapham Junction Low Level"},
		{TIPLOC: "MDNHEAD", CRS: "MAI", Name: "Maidenhead"},
		{TIPLOC: "READING", CRS: "RDG", Name: "Reading"},
	}
}

func (s *refSuite) TestStanoxMapsToMultipleTiplocs(c *check.C) {
	store := newTestStore(c)
	c.Assert(store.LoadEntries(context.Background(), sampleEntries()), check.IsNil)

	tiplocs := store.StanoxToTiplocs("87219")
	c.Assert(tiplocs, check.HasLen, 2)
}

func (s *refSuite) TestTiplocName(c *check.C) {
	store := newTestStore(c)
	c.Assert(store.LoadEntries(context.Background(), sampleEntries()), check.IsNil)

	crs, name, err := store.TiplocName("MDNHEAD")
	c.Assert(err, check.IsNil)
	c.Assert(crs, check.Equals, "MAI")
	c.Assert(name, check.Equals, "Maidenhead")
}

func (s *refSuite) TestTiplocNameNotFound(c *check.C) {
	store := newTestStore(c)
	c.Assert(store.LoadEntries(context.Background(), sampleEntries()), check.IsNil)

	_, _, err := store.TiplocName("NOPE")
	c.Assert(railerr.Is(err, railerr.NotFound), check.IsTrue)
}

func (s *refSuite) TestNameSuggestionsRanksCloserMatchesFirst(c *check.C) {
	store := newTestStore(c)
	c.Assert(store.LoadEntries(context.Background(), sampleEntries()), check.IsNil)

	suggestions := store.NameSuggestions("Maiden", 5)
	c.Assert(suggestions, check.Not(check.HasLen), 0)
	c.Assert(suggestions[0].Name, check.Equals, "Maidenhead")
}

func (s *refSuite) TestNameSuggestionsFavoursTiplocOverCRSOnTie(c *check.C) {
	store := newTestStore(c)
	c.Assert(store.LoadEntries(context.Background(), []model.ReferenceEntry{
		{TIPLOC: "RDG", CRS: "ZZZ", Name: "Something Else"},
		{TIPLOC: "ZZZ", CRS: "RDG", Name: "Another Station"},
	}), check.IsNil)

	suggestions := store.NameSuggestions("RDG", 5)
	c.Assert(suggestions, check.Not(check.HasLen), 0)
	c.Assert(suggestions[0].MatchedOn, check.Equals, "tiploc")
}

func (s *refSuite) TestRefreshReloadsCacheAfterExternalWrite(c *check.C) {
	store := newTestStore(c)
	c.Assert(store.LoadEntries(context.Background(), sampleEntries()), check.IsNil)

	_, err := store.db.ExecContext(context.Background(), `UPDATE reference_entries SET name = ? WHERE tiploc = ?`, "Reading West", "READING")
	c.Assert(err, check.IsNil)

	_, name, err := store.TiplocName("READING")
	c.Assert(err, check.IsNil)
	c.Assert(name, check.Equals, "Reading")

	c.Assert(store.Refresh(context.Background()), check.IsNil)
	_, name, err = store.TiplocName("READING")
	c.Assert(err, check.IsNil)
	c.Assert(name, check.Equals, "Reading West")
}

func (s *refSuite) TestDecodeCorpusDiscardsEmptyEntries(c *check.C) {
	doc, err := DecodeCorpus([]byte(`{"TIPLOCDATA":[
		{"stanox":"87219","tiploc":"CLPHMJC","crs":"CLJ","nlcdesc":"CLAPHAM JUNCTION"},
		{"nlcdesc16":""},
		{"tiploc":"MDNHEAD","nlcdesc":"","nlcdesc16":"MAIDENHEAD"}
	]}`))
	c.Assert(err, check.IsNil)
	c.Assert(doc.Data, check.HasLen, 3)

	entries := FromCorpus(doc.Data)
	c.Assert(entries, check.HasLen, 2)
	c.Assert(entries[0].Name, check.Equals, "CLAPHAM JUNCTION")
	c.Assert(entries[1].Name, check.Equals, "MAIDENHEAD")
}

func (s *refSuite) TestFromMSN(c *check.C) {
	entries := FromMSN([]MSNEntry{
		{TIPLOC: "READING", CRS: "RDG", Name: "Reading"},
		{},
	})
	c.Assert(entries, check.HasLen, 1)
	c.Assert(entries[0].CRS, check.Equals, "RDG")
}
