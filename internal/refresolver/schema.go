package refresolver

// schema is applied once at service startup. reference_entries carries no
// uniqueness guarantee on any field; lookups go through the in-memory
// cache in cache.go rather than ad-hoc queries against this table.
const schema = `
CREATE TABLE IF NOT EXISTS reference_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stanox TEXT,
	tiploc TEXT,
	crs TEXT,
	uic TEXT,
	nlc TEXT,
	name TEXT
);
CREATE INDEX IF NOT EXISTS idx_ref_stanox ON reference_entries(stanox);
CREATE INDEX IF NOT EXISTS idx_ref_tiploc ON reference_entries(tiploc);
CREATE INDEX IF NOT EXISTS idx_ref_crs ON reference_entries(crs);
`
