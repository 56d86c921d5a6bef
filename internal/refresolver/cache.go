package refresolver

import (
	"sort"
	"strings"
	"sync"

	"github.com/trainsplorer/railcore/internal/model"
)

// cache holds the in-memory lookup maps: STANOX→{TIPLOC}, TIPLOC→CRS,
// TIPLOC→name, CRS→name, populated at startup and refreshed on a
// configured interval (see Store.Refresh and the serve-ref subcommand's
// background errgroup goroutine). Reads never touch the database; only
// Refresh does.
type cache struct {
	mu sync.RWMutex

	stanoxToTiplocs map[string][]string
	tiplocToCRS     map[string]string
	tiplocToName    map[string]string
	crsToName       map[string]string
	entries         []model.ReferenceEntry
}

func newCache() *cache {
	return &cache{
		stanoxToTiplocs: make(map[string][]string),
		tiplocToCRS:     make(map[string]string),
		tiplocToName:    make(map[string]string),
		crsToName:       make(map[string]string),
	}
}

func (c *cache) load(entries []model.ReferenceEntry) {
	stanoxToTiplocs := make(map[string][]string)
	tiplocToCRS := make(map[string]string)
	tiplocToName := make(map[string]string)
	crsToName := make(map[string]string)

	for _, e := range entries {
		if e.STANOX != "" && e.TIPLOC != "" {
			stanoxToTiplocs[e.STANOX] = appendUnique(stanoxToTiplocs[e.STANOX], e.TIPLOC)
		}
		if e.TIPLOC != "" && e.CRS != "" {
			tiplocToCRS[e.TIPLOC] = e.CRS
		}
		if e.TIPLOC != "" && e.Name != "" {
			tiplocToName[e.TIPLOC] = e.Name
		}
		if e.CRS != "" && e.Name != "" {
			crsToName[e.CRS] = e.Name
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stanoxToTiplocs = stanoxToTiplocs
	c.tiplocToCRS = tiplocToCRS
	c.tiplocToName = tiplocToName
	c.crsToName = crsToName
	c.entries = entries
}

func appendUnique(ss []string, s string) []string {
	for _, existing := range ss {
		if existing == s {
			return ss
		}
	}
	return append(ss, s)
}

func (c *cache) stanox(stanox string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.stanoxToTiplocs[stanox]...)
}

func (c *cache) tiplocName(tiploc string) (crs, name string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok = c.tiplocToName[tiploc]
	return c.tiplocToCRS[tiploc], name, ok
}

func (c *cache) crsName(crs string) (name string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok = c.crsToName[crs]
	return name, ok
}

// Suggestion is one ranked result from NameSuggestions.
type Suggestion struct {
	TIPLOC    string  `json:"tiploc,omitempty"`
	CRS       string  `json:"crs,omitempty"`
	Name      string  `json:"name,omitempty"`
	Score     float64 `json:"score"`
	MatchedOn string  `json:"matched_on"`
}

// suggest ranks entries against prefix by trigram similarity (see
// trigramSimilarity), comparing prefix against the TIPLOC, CRS, and name
// of every entry and keeping the best-scoring field per entry. Ties are
// broken in favour of a TIPLOC match over a CRS match over a name
// match.
func (c *cache) suggest(prefix string, limit int) []Suggestion {
	c.mu.RLock()
	entries := c.entries
	c.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(prefix))
	if needle == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		Suggestion
		rank int // lower is better: 0=tiploc, 1=crs, 2=name
	}
	seen := make(map[string]bool)
	var out []scored
	for _, e := range entries {
		best := scored{rank: 3}
		consider := func(sc float64, rank int, matchedOn string) {
			if sc <= 0 {
				return
			}
			if best.rank == 3 || sc > best.Score || (sc == best.Score && rank < best.rank) {
				best = scored{Suggestion{TIPLOC: e.TIPLOC, CRS: e.CRS, Name: e.Name, Score: sc, MatchedOn: matchedOn}, rank}
			}
		}
		if e.TIPLOC != "" {
			consider(trigramSimilarity(needle, strings.ToLower(e.TIPLOC)), 0, "tiploc")
		}
		if e.CRS != "" {
			consider(trigramSimilarity(needle, strings.ToLower(e.CRS)), 1, "crs")
		}
		if e.Name != "" {
			consider(trigramSimilarity(needle, strings.ToLower(e.Name)), 2, "name")
		}
		if best.rank == 3 {
			continue
		}
		key := best.TIPLOC + "|" + best.CRS + "|" + best.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, best)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].rank < out[j].rank
	})
	if len(out) > limit {
		out = out[:limit]
	}
	suggestions := make([]Suggestion, len(out))
	for i, s := range out {
		suggestions[i] = s.Suggestion
	}
	return suggestions
}

// trigramSimilarity scores a against b with the Sorensen-Dice coefficient
// over their character-trigram sets (padded with leading/trailing spaces
// so short strings still produce trigrams). An exact match scores 1.0 and
// no shared trigrams scores 0.0; when a is a prefix of b, 0.25 is added to
// the Dice score, so a close prefix match can score above 1.0. The corpus is a few thousand station names held in
// memory, so the ranking runs in process with no FTS engine behind it.
func trigramSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ta, tb := trigramSet(a), trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		if strings.HasPrefix(b, a) || strings.HasPrefix(a, b) {
			return 0.5
		}
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	score := 2 * float64(shared) / float64(len(ta)+len(tb))
	if strings.HasPrefix(b, a) {
		score += 0.25
	}
	return score
}

func trigramSet(s string) map[string]int {
	padded := "  " + s + "  "
	set := make(map[string]int)
	for i := 0; i+3 <= len(padded); i++ {
		set[padded[i:i+3]]++
	}
	return set
}
