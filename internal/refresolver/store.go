// Package refresolver is the Reference Resolver: STANOX↔TIPLOC↔CRS
// mapping and station-name lookup. It keeps entries durably in its
// embedded store, but answers every lookup from an in-memory cache that
// is populated at startup and refreshed on a configured interval, since
// reference data changes far less often than it is read.
package refresolver

import (
	"context"
	"database/sql"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
)

// Store is the reference resolver's single entry point.
type Store struct {
	db    *sql.DB
	cache *cache
}

func New(db *sql.DB) *Store {
	return &Store{db: db, cache: newCache()}
}

// Init creates the store's schema if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Annotate(err, "init reference store schema")
	}
	return nil
}

// LoadEntries replaces the stored reference data wholesale with entries
// and refreshes the in-memory cache. This is the boundary operation the
// CORPUS/MSN ingest adapters call once their wire formats have been
// decoded into model.ReferenceEntry values; file and transport handling
// stay on their side of the line.
func (s *Store) LoadEntries(ctx context.Context, entries []model.ReferenceEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "load entries: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reference_entries`); err != nil {
		return errors.Annotate(err, "load entries: clear table")
	}
	for _, e := range entries {
		if e.STANOX == "" && e.TIPLOC == "" && e.CRS == "" && e.UIC == "" && e.NLC == "" && e.Name == "" {
			// All fields empty: the entry carries no information.
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reference_entries (stanox, tiploc, crs, uic, nlc, name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nullableString(e.STANOX), nullableString(e.TIPLOC), nullableString(e.CRS),
			nullableString(e.UIC), nullableString(e.NLC), nullableString(e.Name)); err != nil {
			return errors.Annotate(err, "load entries: insert")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Annotate(err, "load entries: commit")
	}
	return s.Refresh(ctx)
}

// Refresh reloads the in-memory cache from the durable store. Call this
// once at startup and on a timer thereafter (see cmd/railcore's
// serve-ref subcommand).
func (s *Store) Refresh(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT stanox, tiploc, crs, uic, nlc, name FROM reference_entries`)
	if err != nil {
		return errors.Annotate(err, "refresh reference cache")
	}
	defer rows.Close()

	var entries []model.ReferenceEntry
	for rows.Next() {
		var e model.ReferenceEntry
		var stanox, tiploc, crs, uic, nlc, name sql.NullString
		if err := rows.Scan(&stanox, &tiploc, &crs, &uic, &nlc, &name); err != nil {
			return errors.Trace(err)
		}
		e.STANOX, e.TIPLOC, e.CRS, e.UIC, e.NLC, e.Name = stanox.String, tiploc.String, crs.String, uic.String, nlc.String, name.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return errors.Trace(err)
	}
	s.cache.load(entries)
	log.Info("reference cache refreshed", zap.Int("entries", len(entries)))
	return nil
}

// StanoxToTiplocs returns the TIPLOCs a STANOX maps to. A STANOX may map
// to more than one TIPLOC.
func (s *Store) StanoxToTiplocs(stanox string) []string {
	return s.cache.stanox(stanox)
}

// TiplocName returns the CRS and human name for tiploc, if known.
func (s *Store) TiplocName(tiploc string) (crs, name string, err error) {
	crs, name, ok := s.cache.tiplocName(tiploc)
	if !ok {
		return "", "", railerr.Newf(railerr.NotFound, "tiploc %s", tiploc)
	}
	return crs, name, nil
}

// CRSName returns the human name for a CRS code, if known.
func (s *Store) CRSName(crs string) (string, error) {
	name, ok := s.cache.crsName(crs)
	if !ok {
		return "", railerr.Newf(railerr.NotFound, "crs %s", crs)
	}
	return name, nil
}

// NameSuggestions ranks up to limit station matches for prefix by trigram
// similarity over TIPLOC, CRS, and name fields.
func (s *Store) NameSuggestions(prefix string, limit int) []Suggestion {
	return s.cache.suggest(prefix, limit)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
