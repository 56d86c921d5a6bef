// Package schedulestore is the durable store of timetable versions: it
// upserts schedules and their movements, resolves which schedule version
// is authoritative for a given UID and date under the STP precedence
// lattice, and answers "what passes through this location" queries for
// Query Fusion.
package schedulestore

import (
	"context"
	"database/sql"
	"sort"

	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
)

// Store is the schedule store's single entry point. It owns no
// connection pool of its own; callers pass an already-opened *sql.DB
// (see internal/dbutil).
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// Init creates the store's schema if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Annotate(err, "init schedule store schema")
	}
	return nil
}

// Upsert stores sched and its movements. If a row already exists for
// sched's (uid, start_date, stp_indicator, source) key, its movements are
// compared against the incoming ones under (day_offset, time, action,
// tiploc) equality: identical movement sets are a no-op, otherwise the old
// row is replaced wholesale and a fresh version id is minted. wasUpdate
// reports whether a prior row for this key existed at all (true), as
// opposed to this being a brand-new schedule (false); it is true even
// when the content turned out to be identical, since "update" here
// describes the write path taken, not whether bytes changed.
func (s *Store) Upsert(ctx context.Context, sched model.Schedule, mvts []model.ScheduleMvt) (versionID string, wasUpdate bool, err error) {
	sorted := sortedMovements(mvts)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, errors.Annotate(err, "upsert: begin tx")
	}
	defer tx.Rollback()

	key := sched.Key()
	existingID, existingMvts, found, err := s.findByKeyTx(ctx, tx, key)
	if err != nil {
		return "", false, err
	}

	if found && movementsEqual(existingMvts, sorted) {
		if err := tx.Commit(); err != nil {
			return "", false, errors.Annotate(err, "upsert: commit no-op")
		}
		return existingID, true, nil
	}

	if found {
		if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE version_id = ?`, existingID); err != nil {
			return "", false, errors.Annotate(err, "upsert: delete prior version")
		}
	}

	newID := uuid.NewString()
	if err := insertScheduleTx(ctx, tx, newID, sched, sorted); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, errors.Annotate(err, "upsert: commit")
	}
	return newID, found, nil
}

// Delete removes the schedule matching key, cascade-deleting its
// movements.
func (s *Store) Delete(ctx context.Context, key model.ScheduleKey) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE uid = ? AND start_date = ? AND stp_indicator = ? AND source = ?`,
		key.UID, key.StartDate.String(), int(key.STPIndicator), int(key.Source))
	if err != nil {
		return errors.Annotatef(err, "delete schedule %s", key.UID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Trace(err)
	}
	if n == 0 {
		return railerr.Newf(railerr.NotFound, "schedule %s/%s/%s/%s", key.UID, key.StartDate, key.STPIndicator, key.Source)
	}
	return nil
}

// FindByUid returns every stored version for uid, in no particular order.
func (s *Store) FindByUid(ctx context.Context, uid string) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, scheduleColumns(`WHERE uid = ?`), uid)
	if err != nil {
		return nil, errors.Annotatef(err, "find schedules by uid %s", uid)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// FindForActivation returns the exact schedule version Activate() needs.
func (s *Store) FindForActivation(ctx context.Context, uid string, stp model.STPIndicator, startDate model.Date, source model.Source) (model.Schedule, error) {
	row := s.db.QueryRowContext(ctx, scheduleColumns(`WHERE uid = ? AND stp_indicator = ? AND start_date = ? AND source = ?`),
		uid, int(stp), startDate.String(), int(source))
	sched, err := scanSchedule(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Schedule{}, railerr.Newf(railerr.NotFound, "schedule for activation %s/%s/%s/%s", uid, startDate, stp, source)
	}
	if err != nil {
		return model.Schedule{}, err
	}
	return sched, nil
}

// FindAuthoritativeOnDate implements the STP precedence algorithm: among
// schedules sharing uid and source whose date range and weekday bitmask
// cover date, the minimum STP indicator wins (Cancellation < New <
// Overlay < Permanent). A tie on a non-Cancellation indicator is a store
// inconsistency. The winner is returned even if it is a Cancellation;
// callers that mean "is this train running" must check STPIndicator
// themselves (see internal/trainengine.ActivateFuzzy).
func (s *Store) FindAuthoritativeOnDate(ctx context.Context, uid string, date model.Date, source model.Source) (model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, scheduleColumns(`WHERE uid = ? AND source = ? AND start_date <= ? AND end_date >= ?`),
		uid, int(source), date.String(), date.String())
	if err != nil {
		return model.Schedule{}, errors.Annotatef(err, "find authoritative schedule %s on %s", uid, date)
	}
	defer rows.Close()
	candidates, err := scanSchedules(rows)
	if err != nil {
		return model.Schedule{}, err
	}

	var covering []model.Schedule
	for _, c := range candidates {
		if c.Weekdays.Covers(date.Weekday()) {
			covering = append(covering, c)
		}
	}
	if len(covering) == 0 {
		return model.Schedule{}, railerr.Newf(railerr.NotFound, "no schedule for %s on %s", uid, date)
	}

	best := covering[0]
	tie := false
	for _, c := range covering[1:] {
		switch {
		case c.STPIndicator < best.STPIndicator:
			best = c
			tie = false
		case c.STPIndicator == best.STPIndicator:
			tie = true
		}
	}
	if tie && best.STPIndicator != model.STPCancellation {
		log.Error("authoritative schedule tie", zap.String("uid", uid), zap.String("date", date.String()), zap.String("stp", best.STPIndicator.String()))
		return model.Schedule{}, railerr.Newf(railerr.InconsistentStore, "multiple %s schedules for %s on %s", best.STPIndicator, uid, date)
	}
	return best, nil
}

// GetDetails returns the schedule for versionID and its movements in
// physical traversal order.
func (s *Store) GetDetails(ctx context.Context, versionID string) (model.Schedule, []model.ScheduleMvt, error) {
	row := s.db.QueryRowContext(ctx, scheduleColumns(`WHERE version_id = ?`), versionID)
	sched, err := scanSchedule(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Schedule{}, nil, railerr.Newf(railerr.NotFound, "schedule %s", versionID)
	}
	if err != nil {
		return model.Schedule{}, nil, err
	}
	mvts, err := s.movementsForVersion(ctx, versionID)
	if err != nil {
		return model.Schedule{}, nil, err
	}
	return sched, mvts, nil
}

// MatchThrough is one schedule's movement through a queried location,
// bundled with its parent schedule for Query Fusion's use.
type MatchThrough struct {
	Schedule model.Schedule    `json:"schedule"`
	Movement model.ScheduleMvt `json:"movement"`
}

// MovementsThrough returns, for every UID with a schedule passing through
// tiploc within [center-windowSecs, center+windowSecs] on date (clamped to
// the day; the window does not cross midnight), the single authoritative
// schedule's movement. Schedules a more authoritative sibling supersedes
// are never returned, so callers never see both.
func (s *Store) MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]MatchThrough, error) {
	lo := center.Sub(0) - windowSecs
	hi := center.Sub(0) + windowSecs
	if lo < 0 {
		lo = 0
	}
	if hi > 29*3600 {
		hi = 29 * 3600
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.uid, s.source FROM schedule_movements m
		JOIN schedules s ON s.version_id = m.schedule_version_id
		WHERE m.tiploc = ? AND m.working_time BETWEEN ? AND ?
		GROUP BY s.uid, s.source`, tiploc, lo, hi)
	if err != nil {
		return nil, errors.Annotatef(err, "movements through %s", tiploc)
	}
	type uidSource struct {
		uid    string
		source model.Source
	}
	var keys []uidSource
	for rows.Next() {
		var k uidSource
		var source int
		if err := rows.Scan(&k.uid, &source); err != nil {
			rows.Close()
			return nil, errors.Trace(err)
		}
		k.source = model.Source(source)
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	var out []MatchThrough
	for _, k := range keys {
		sched, err := s.FindAuthoritativeOnDate(ctx, k.uid, date, k.source)
		if railerr.Is(err, railerr.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if sched.STPIndicator == model.STPCancellation {
			continue
		}
		mvts, err := s.movementsForVersion(ctx, sched.VersionID)
		if err != nil {
			return nil, err
		}
		for _, m := range mvts {
			if m.TIPLOC != tiploc {
				continue
			}
			secs := m.WorkingTime.Sub(0)
			if secs >= lo && secs <= hi {
				out = append(out, MatchThrough{Schedule: sched, Movement: m})
			}
		}
	}
	return out, nil
}

// RecordIngestFile rejects a file whose timestamp was already seen, or
// whose sequence is not strictly greater than the stream's stored
// maximum.
func (s *Store) RecordIngestFile(ctx context.Context, stream string, sequence int64, ts string) error {
	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM ingest_files WHERE stream = ?`, stream).Scan(&maxSeq); err != nil {
		return errors.Annotatef(err, "record ingest file %s/%d", stream, sequence)
	}
	if maxSeq.Valid && sequence <= maxSeq.Int64 {
		return railerr.Newf(railerr.Conflict, "ingest file %s: sequence %d is not greater than stored max %d", stream, sequence, maxSeq.Int64)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO ingest_files (stream, sequence, ts) VALUES (?, ?, ?)`, stream, sequence, ts); err != nil {
		return railerr.Newf(railerr.Conflict, "ingest file %s/%d: %v", stream, sequence, err)
	}
	return nil
}

func (s *Store) movementsForVersion(ctx context.Context, versionID string) ([]model.ScheduleMvt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schedule_version_id, tiploc, action, working_time, day_offset, platform, public_time
		FROM schedule_movements WHERE schedule_version_id = ?
		ORDER BY day_offset, working_time, action`, versionID)
	if err != nil {
		return nil, errors.Annotatef(err, "movements for %s", versionID)
	}
	defer rows.Close()
	var out []model.ScheduleMvt
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, errors.Trace(rows.Err())
}

func (s *Store) findByKeyTx(ctx context.Context, tx *sql.Tx, key model.ScheduleKey) (versionID string, mvts []model.ScheduleMvt, found bool, err error) {
	row := tx.QueryRowContext(ctx, `SELECT version_id FROM schedules WHERE uid = ? AND start_date = ? AND stp_indicator = ? AND source = ?`,
		key.UID, key.StartDate.String(), int(key.STPIndicator), int(key.Source))
	if err := row.Scan(&versionID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows || err == sql.ErrNoRows {
			return "", nil, false, nil
		}
		return "", nil, false, errors.Trace(err)
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT schedule_version_id, tiploc, action, working_time, day_offset, platform, public_time
		FROM schedule_movements WHERE schedule_version_id = ?
		ORDER BY day_offset, working_time, action`, versionID)
	if err != nil {
		return "", nil, false, errors.Trace(err)
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return "", nil, false, err
		}
		mvts = append(mvts, m)
	}
	return versionID, mvts, true, errors.Trace(rows.Err())
}

func insertScheduleTx(ctx context.Context, tx *sql.Tx, versionID string, sched model.Schedule, mvts []model.ScheduleMvt) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO schedules (version_id, uid, start_date, end_date, weekdays, stp_indicator, headcode, source, file_sequence, darwin_rid, crosses_midnight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		versionID, sched.UID, sched.StartDate.String(), sched.EndDate.String(), int(sched.Weekdays), int(sched.STPIndicator),
		nullableString(sched.Headcode), int(sched.Source), sched.FileSequence, nullableString(sched.DarwinRID), boolToInt(sched.CrossesMidnight))
	if err != nil {
		return errors.Annotatef(err, "insert schedule %s", sched.UID)
	}
	for _, m := range mvts {
		var pub sql.NullInt64
		if m.PublicTime != nil {
			pub = sql.NullInt64{Int64: int64(*m.PublicTime), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_movements (schedule_version_id, tiploc, action, working_time, day_offset, platform, public_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			versionID, m.TIPLOC, int(m.Action), int(m.WorkingTime), m.DayOffset, nullableString(m.Platform), pub); err != nil {
			return errors.Annotatef(err, "insert movement %s@%s", sched.UID, m.TIPLOC)
		}
	}
	return nil
}

func sortedMovements(mvts []model.ScheduleMvt) []model.ScheduleMvt {
	sorted := make([]model.ScheduleMvt, len(mvts))
	copy(sorted, mvts)
	if !sort.SliceIsSorted(sorted, func(i, j int) bool { return lessMvt(sorted[i], sorted[j]) }) {
		log.Warn("schedule movements were not in canonical order, sorting before storing")
		sort.Slice(sorted, func(i, j int) bool { return lessMvt(sorted[i], sorted[j]) })
	}
	return sorted
}

func lessMvt(a, b model.ScheduleMvt) bool {
	ad, at, aa := a.SortKey()
	bd, bt, ba := b.SortKey()
	if ad != bd {
		return ad < bd
	}
	if at != bt {
		return at < bt
	}
	return aa < ba
}

func movementsEqual(a, b []model.ScheduleMvt) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].DayOffset != b[i].DayOffset || a[i].WorkingTime != b[i].WorkingTime ||
			a[i].Action != b[i].Action || a[i].TIPLOC != b[i].TIPLOC {
			return false
		}
	}
	return true
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
