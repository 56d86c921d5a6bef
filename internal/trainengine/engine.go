// Package trainengine is the running-train state machine: activation of
// schedules into live trains, and reconciliation of TRUST and Darwin
// updates against a baseline into TrainMvts.
package trainengine

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/trainsplorer/railcore/internal/darwin"
	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
	"github.com/trainsplorer/railcore/internal/trust"
)

// Engine is the Running-Train Engine's single entry point.
type Engine struct {
	db        *sql.DB
	schedules ScheduleClient
	reference ReferenceClient
}

func New(db *sql.DB, schedules ScheduleClient, reference ReferenceClient) *Engine {
	return &Engine{db: db, schedules: schedules, reference: reference}
}

func (e *Engine) Init(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return errors.Annotate(err, "init train engine schema")
	}
	return nil
}

// Activate looks up the exact schedule version and copies its movements
// into a new Train. Calling it twice with the same arguments returns the
// same Train without duplicating movements.
func (e *Engine) Activate(ctx context.Context, uid string, startDate model.Date, stp model.STPIndicator, source model.Source, activationDate model.Date) (model.Train, error) {
	if existing, found, err := e.findByActivationKey(ctx, uid, startDate, stp, source, activationDate); err != nil {
		return model.Train{}, err
	} else if found {
		return existing, nil
	}

	sched, mvts, err := e.schedules.FindForActivation(ctx, uid, stp, startDate, source)
	if err != nil {
		return model.Train{}, err
	}

	train := model.Train{
		ID: uuid.NewString(), UID: uid, StartDate: startDate, STPIndicator: stp, Source: source,
		Date: activationDate, Headcode: sched.Headcode, CrossesMidnight: sched.CrossesMidnight, Activated: true,
	}
	if err := e.insertTrain(ctx, e.db, train, mvts, model.SchedSourceFor(source)); err != nil {
		return model.Train{}, err
	}
	return train, nil
}

// ActivateFuzzy is Darwin's entry point: it identifies a train by RID
// alone and resolves the schedule by date rather than by exact STP/start
// date. If no authoritative (non-cancellation) schedule is found, it
// creates an unactivated stub Train that later Darwin updates can attach
// to. Idempotent on darwin_rid.
func (e *Engine) ActivateFuzzy(ctx context.Context, uid string, date model.Date, darwinRID string) (model.Train, error) {
	if existing, found, err := e.findByDarwinRid(ctx, darwinRID); err != nil {
		return model.Train{}, err
	} else if found {
		return existing, nil
	}

	sched, mvts, err := e.schedules.FindAuthoritativeOnDate(ctx, uid, date, model.SourceITPS)
	notFound := railerr.Is(err, railerr.NotFound)
	if err != nil && !notFound {
		return model.Train{}, err
	}

	if notFound || sched.STPIndicator == model.STPCancellation {
		stub := model.Train{ID: uuid.NewString(), UID: uid, StartDate: date, STPIndicator: model.STPNew, Source: model.SourceDarwin, Date: date, DarwinRID: darwinRID}
		if err := e.insertTrain(ctx, e.db, stub, nil, model.MvtSchedDarwin); err != nil {
			return model.Train{}, err
		}
		return stub, nil
	}

	train := model.Train{
		ID: uuid.NewString(), UID: uid, StartDate: sched.StartDate, STPIndicator: sched.STPIndicator, Source: sched.Source,
		Date: date, DarwinRID: darwinRID, Headcode: sched.Headcode, CrossesMidnight: sched.CrossesMidnight, Activated: true,
	}
	if err := e.insertTrain(ctx, e.db, train, mvts, model.SchedSourceFor(sched.Source)); err != nil {
		return model.Train{}, err
	}
	return train, nil
}

// AttachTrustId sets train_id's trust_id the first time it is seen;
// repeating the same value is a no-op; a different value is a Conflict.
func (e *Engine) AttachTrustId(ctx context.Context, trainID, trustID string) error {
	train, err := e.GetDetailsTrain(ctx, trainID)
	if err != nil {
		return err
	}
	if train.TrustID == trustID {
		return nil
	}
	if train.TrustID != "" {
		return railerr.Newf(railerr.Conflict, "train %s already has trust id %s", trainID, train.TrustID)
	}
	_, err = e.db.ExecContext(ctx, `UPDATE trains SET trust_id = ? WHERE id = ?`, trustID, trainID)
	return errors.Annotatef(err, "attach trust id to %s", trainID)
}

// Terminate and Cancel are idempotent flag setters.
func (e *Engine) Terminate(ctx context.Context, trainID string) error {
	return e.setFlag(ctx, trainID, "terminated")
}

func (e *Engine) Cancel(ctx context.Context, trainID string) error {
	return e.setFlag(ctx, trainID, "cancelled")
}

func (e *Engine) setFlag(ctx context.Context, trainID, column string) error {
	res, err := e.db.ExecContext(ctx, `UPDATE trains SET `+column+` = 1 WHERE id = ?`, trainID)
	if err != nil {
		return errors.Annotatef(err, "set %s on %s", column, trainID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Trace(err)
	}
	if n == 0 {
		return railerr.Newf(railerr.NotFound, "train %s", trainID)
	}
	return nil
}

// ApplyTrustMovement resolves upd's STANOX to a TIPLOC set, selects the
// single matching baseline, and inserts a TRUST TrainMvt updating it,
// replacing any prior TRUST update for the same baseline. The whole
// operation runs inside one exclusive transaction.
func (e *Engine) ApplyTrustMovement(ctx context.Context, trainID string, upd trust.Update) (model.TrainMvt, error) {
	tiplocs, err := e.reference.StanoxToTiplocs(ctx, upd.STANOX)
	if err != nil {
		return model.TrainMvt{}, err
	}
	if len(tiplocs) == 0 {
		return model.TrainMvt{}, railerr.Newf(railerr.NotFound, "no tiploc for stanox %s", upd.STANOX)
	}

	conn, err := e.beginImmediate(ctx)
	if err != nil {
		return model.TrainMvt{}, err
	}
	defer conn.rollback(ctx)

	baseline, err := conn.findTrustBaseline(ctx, trainID, tiplocs, upd.PlannedDayOffset, upd.PlannedTime, upd.PlannedAction)
	if err != nil {
		return model.TrainMvt{}, err
	}

	if err := conn.deleteUpdatesBySource(ctx, trainID, baseline.ID, model.MvtTRUST); err != nil {
		return model.TrainMvt{}, err
	}

	mvt := model.TrainMvt{
		ID: uuid.NewString(), TrainID: trainID, Updates: baseline.ID, TIPLOC: baseline.TIPLOC, Action: upd.PlannedAction,
		Actual: true, Time: upd.ActualTime, DayOffset: baseline.DayOffset, PublicTime: upd.PublicTime, Source: model.MvtTRUST, Platform: upd.Platform,
	}
	if err := conn.insertMovement(ctx, mvt); err != nil {
		return model.TrainMvt{}, err
	}
	if err := conn.commit(ctx); err != nil {
		return model.TrainMvt{}, err
	}
	return mvt, nil
}

// ApplyDarwinMovement selects the baseline by an exact match, deletes any
// prior Darwin update for it, and inserts upd as the new prediction.
func (e *Engine) ApplyDarwinMovement(ctx context.Context, trainID string, upd darwin.Update) (model.TrainMvt, error) {
	conn, err := e.beginImmediate(ctx)
	if err != nil {
		return model.TrainMvt{}, err
	}
	defer conn.rollback(ctx)

	baseline, err := conn.findDarwinBaseline(ctx, trainID, upd.TIPLOC, upd.Action, upd.PlannedDayOffset, upd.PlannedTime)
	if err != nil {
		return model.TrainMvt{}, err
	}
	if err := conn.deleteUpdatesBySource(ctx, trainID, baseline.ID, model.MvtDarwin); err != nil {
		return model.TrainMvt{}, err
	}

	mvt := model.TrainMvt{
		ID: uuid.NewString(), TrainID: trainID, Updates: baseline.ID, TIPLOC: baseline.TIPLOC, Action: upd.Action,
		Actual: upd.TimeActual, Time: upd.UpdatedTime, DayOffset: baseline.DayOffset, Source: model.MvtDarwin,
		Platform: upd.Platform, PlatformSuppr: upd.PlatSup, UnknownDelay: upd.DelayUnknown,
	}
	if err := conn.insertMovement(ctx, mvt); err != nil {
		return model.TrainMvt{}, err
	}
	if err := conn.commit(ctx); err != nil {
		return model.TrainMvt{}, err
	}
	return mvt, nil
}

// RemoveDarwinActual deletes the Darwin update for the baseline matching
// plannedKey, in response to an at_removed signal. It is a no-op if no
// Darwin update currently exists for that baseline.
func (e *Engine) RemoveDarwinActual(ctx context.Context, trainID string, key PlannedKey) error {
	conn, err := e.beginImmediate(ctx)
	if err != nil {
		return err
	}
	defer conn.rollback(ctx)

	baseline, err := conn.findDarwinBaseline(ctx, trainID, key.TIPLOC, key.Action, key.DayOffset, key.Time)
	if err != nil {
		return err
	}
	if err := conn.deleteUpdatesBySource(ctx, trainID, baseline.ID, model.MvtDarwin); err != nil {
		return err
	}
	return conn.commit(ctx)
}

// PlannedKey identifies a baseline movement for RemoveDarwinActual.
type PlannedKey struct {
	TIPLOC    string       `json:"tiploc"`
	Action    model.Action `json:"action"`
	DayOffset int          `json:"day_offset"`
	Time      model.Time   `json:"time"`
}

func (e *Engine) GetByTrustId(ctx context.Context, trustID string, date model.Date) (model.Train, error) {
	row := e.db.QueryRowContext(ctx, trainSelectCols+`WHERE trust_id = ? AND date = ?`, trustID, date.String())
	train, err := scanTrain(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Train{}, railerr.Newf(railerr.NotFound, "train trust_id=%s date=%s", trustID, date)
	}
	return train, err
}

func (e *Engine) GetByDarwinRid(ctx context.Context, rid string) (model.Train, error) {
	row := e.db.QueryRowContext(ctx, trainSelectCols+`WHERE darwin_rid = ?`, rid)
	train, err := scanTrain(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Train{}, railerr.Newf(railerr.NotFound, "train darwin_rid=%s", rid)
	}
	return train, err
}

func (e *Engine) GetDetails(ctx context.Context, trainID string) (model.Train, []model.TrainMvt, error) {
	train, err := e.GetDetailsTrain(ctx, trainID)
	if err != nil {
		return model.Train{}, nil, err
	}
	mvts, err := e.movementsForTrain(ctx, trainID)
	if err != nil {
		return model.Train{}, nil, err
	}
	return train, mvts, nil
}

// GetDetailsTrain fetches just the Train row, without its movements.
func (e *Engine) GetDetailsTrain(ctx context.Context, trainID string) (model.Train, error) {
	row := e.db.QueryRowContext(ctx, trainSelectCols+`WHERE id = ?`, trainID)
	train, err := scanTrain(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Train{}, railerr.Newf(railerr.NotFound, "train %s", trainID)
	}
	return train, err
}

func (e *Engine) movementsForTrain(ctx context.Context, trainID string) ([]model.TrainMvt, error) {
	rows, err := e.db.QueryContext(ctx, movementSelectCols+`WHERE train_id = ? ORDER BY day_offset, time, action`, trainID)
	if err != nil {
		return nil, errors.Annotatef(err, "movements for train %s", trainID)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (e *Engine) findByActivationKey(ctx context.Context, uid string, startDate model.Date, stp model.STPIndicator, source model.Source, date model.Date) (model.Train, bool, error) {
	row := e.db.QueryRowContext(ctx, trainSelectCols+`WHERE uid = ? AND start_date = ? AND stp_indicator = ? AND source = ? AND date = ?`,
		uid, startDate.String(), int(stp), int(source), date.String())
	train, err := scanTrain(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Train{}, false, nil
	}
	if err != nil {
		return model.Train{}, false, err
	}
	return train, true, nil
}

func (e *Engine) findByDarwinRid(ctx context.Context, rid string) (model.Train, bool, error) {
	row := e.db.QueryRowContext(ctx, trainSelectCols+`WHERE darwin_rid = ?`, rid)
	train, err := scanTrain(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return model.Train{}, false, nil
	}
	if err != nil {
		return model.Train{}, false, err
	}
	return train, true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (e *Engine) insertTrain(ctx context.Context, ex execer, train model.Train, mvts []model.ScheduleMvt, mvtSource model.MvtSource) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trains (id, uid, start_date, stp_indicator, source, date, trust_id, darwin_rid, headcode, crosses_midnight, terminated, cancelled, activated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		train.ID, train.UID, train.StartDate.String(), int(train.STPIndicator), int(train.Source), train.Date.String(),
		nullableString(train.TrustID), nullableString(train.DarwinRID), nullableString(train.Headcode), boolToInt(train.CrossesMidnight), boolToInt(train.Activated))
	if err != nil {
		return errors.Annotatef(err, "insert train %s", train.UID)
	}
	for _, m := range mvts {
		var pub sql.NullInt64
		if m.PublicTime != nil {
			pub = sql.NullInt64{Int64: int64(*m.PublicTime), Valid: true}
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO train_movements (id, train_id, updates, tiploc, action, actual, time, day_offset, public_time, source, platform)
			VALUES (?, ?, NULL, ?, ?, 0, ?, ?, ?, ?, ?)`,
			uuid.NewString(), train.ID, m.TIPLOC, int(m.Action), int(m.WorkingTime), m.DayOffset, pub, int(mvtSource), nullableString(m.Platform)); err != nil {
			return errors.Annotatef(err, "insert baseline movement %s@%s", train.UID, m.TIPLOC)
		}
	}
	log.Info("train activated", zap.String("train_id", train.ID), zap.String("uid", train.UID), zap.String("date", train.Date.String()))
	return nil
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
