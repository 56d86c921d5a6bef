package schedulestore

import (
	"database/sql"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

const scheduleSelectCols = `SELECT version_id, uid, start_date, end_date, weekdays, stp_indicator, headcode, source, file_sequence, darwin_rid, crosses_midnight FROM schedules `

func scheduleColumns(where string) string { return scheduleSelectCols + where }

func scanSchedule(row scanner) (model.Schedule, error) {
	var (
		versionID, uid, startDate, endDate string
		weekdays, stp, source              int
		headcode, darwinRID                sql.NullString
		fileSequence                       sql.NullInt64
		crosses                            int
	)
	if err := row.Scan(&versionID, &uid, &startDate, &endDate, &weekdays, &stp, &headcode, &source, &fileSequence, &darwinRID, &crosses); err != nil {
		return model.Schedule{}, errors.Trace(err)
	}
	sd, err := model.ParseDate(startDate)
	if err != nil {
		return model.Schedule{}, errors.Trace(err)
	}
	ed, err := model.ParseDate(endDate)
	if err != nil {
		return model.Schedule{}, errors.Trace(err)
	}
	sched := model.Schedule{
		VersionID:       versionID,
		UID:             uid,
		StartDate:       sd,
		EndDate:         ed,
		Weekdays:        model.Weekdays(weekdays),
		STPIndicator:    model.STPIndicator(stp),
		Headcode:        headcode.String,
		Source:          model.Source(source),
		DarwinRID:       darwinRID.String,
		CrossesMidnight: crosses != 0,
	}
	if fileSequence.Valid {
		v := fileSequence.Int64
		sched.FileSequence = &v
	}
	return sched, nil
}

func scanSchedules(rows *sql.Rows) ([]model.Schedule, error) {
	var out []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, errors.Trace(rows.Err())
}

func scanMovement(row scanner) (model.ScheduleMvt, error) {
	var (
		versionID, tiploc        string
		action, workingTime, day int
		platform                 sql.NullString
		publicTime               sql.NullInt64
	)
	if err := row.Scan(&versionID, &tiploc, &action, &workingTime, &day, &platform, &publicTime); err != nil {
		return model.ScheduleMvt{}, errors.Trace(err)
	}
	m := model.ScheduleMvt{
		ScheduleVersionID: versionID,
		TIPLOC:            tiploc,
		Action:            model.Action(action),
		WorkingTime:       model.Time(workingTime),
		DayOffset:         day,
		Platform:          platform.String,
	}
	if publicTime.Valid {
		t := model.Time(publicTime.Int64)
		m.PublicTime = &t
	}
	return m, nil
}
