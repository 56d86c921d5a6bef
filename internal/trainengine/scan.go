package trainengine

import (
	"database/sql"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

const trainSelectCols = `SELECT id, uid, start_date, stp_indicator, source, date, trust_id, darwin_rid, headcode, crosses_midnight, terminated, cancelled, activated FROM trains `

func scanTrain(row scanner) (model.Train, error) {
	var (
		id, uid, startDate, date                  string
		stp, source                               int
		trustID, darwinRID, headcode              sql.NullString
		crosses, terminated, cancelled, activated int
	)
	if err := row.Scan(&id, &uid, &startDate, &stp, &source, &date, &trustID, &darwinRID, &headcode, &crosses, &terminated, &cancelled, &activated); err != nil {
		return model.Train{}, errors.Trace(err)
	}
	sd, err := model.ParseDate(startDate)
	if err != nil {
		return model.Train{}, errors.Trace(err)
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return model.Train{}, errors.Trace(err)
	}
	return model.Train{
		ID: id, UID: uid, StartDate: sd, STPIndicator: model.STPIndicator(stp), Source: model.Source(source),
		Date: d, TrustID: trustID.String, DarwinRID: darwinRID.String, Headcode: headcode.String,
		CrossesMidnight: crosses != 0, Terminated: terminated != 0, Cancelled: cancelled != 0, Activated: activated != 0,
	}, nil
}

const movementSelectCols = `SELECT id, train_id, updates, tiploc, action, actual, time, day_offset, public_time, source, platform, platform_suppress, unknown_delay FROM train_movements `

func scanMovement(row scanner) (model.TrainMvt, error) {
	var (
		id, trainID, tiploc                 string
		updates, platform                   sql.NullString
		action, source, dayOffset           int
		actual, platformSuppr, unknownDelay int
		timeVal                             int
		publicTime                          sql.NullInt64
	)
	if err := row.Scan(&id, &trainID, &updates, &tiploc, &action, &actual, &timeVal, &dayOffset, &publicTime, &source, &platform, &platformSuppr, &unknownDelay); err != nil {
		return model.TrainMvt{}, errors.Trace(err)
	}
	m := model.TrainMvt{
		ID: id, TrainID: trainID, Updates: updates.String, TIPLOC: tiploc, Action: model.Action(action),
		Actual: actual != 0, Time: model.Time(timeVal), DayOffset: dayOffset, Source: model.MvtSource(source),
		Platform: platform.String, PlatformSuppr: platformSuppr != 0, UnknownDelay: unknownDelay != 0,
	}
	if publicTime.Valid {
		t := model.Time(publicTime.Int64)
		m.PublicTime = &t
	}
	return m, nil
}

func scanMovements(rows *sql.Rows) ([]model.TrainMvt, error) {
	var out []model.TrainMvt
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, errors.Trace(rows.Err())
}
