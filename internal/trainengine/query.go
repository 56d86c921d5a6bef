package trainengine

import (
	"context"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

// TrainMatch is one running train's baseline movement through a location,
// together with any live updates layered on top of it. Query Fusion uses
// this as the "live" half of its fuse algorithm.
type TrainMatch struct {
	Train    model.Train      `json:"train"`
	Baseline model.TrainMvt   `json:"baseline"`
	Updates  []model.TrainMvt `json:"updates"`
}

// MovementsThrough finds every train whose baseline schedule passes
// through tiploc within windowSecs of center on date, together with any
// TRUST/Darwin updates recorded against that baseline. The window is
// clamped to the day (mirroring schedulestore.Store's own clamp), and a
// baseline is included not only when its own time falls in the window
// but also when one of its updates does: a running-late train can carry
// a baseline well outside the window while its TRUST/Darwin update is
// the one actually due now, and that update is sufficient reason to
// surface the whole group on a departure board.
func (e *Engine) MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]TrainMatch, error) {
	lo := center.Sub(0) - windowSecs
	hi := center.Sub(0) + windowSecs
	if lo < 0 {
		lo = 0
	}
	if hi > 29*3600 {
		hi = 29 * 3600
	}

	rows, err := e.db.QueryContext(ctx, movementSelectCols+`
		WHERE updates IS NULL AND tiploc = ? AND train_id IN (SELECT id FROM trains WHERE date = ?)
		AND (
			time BETWEEN ? AND ?
			OR id IN (SELECT updates FROM train_movements WHERE updates IS NOT NULL AND time BETWEEN ? AND ?)
		)`,
		tiploc, date.String(), lo, hi, lo, hi)
	if err != nil {
		return nil, errors.Annotate(err, "movements through")
	}
	baselines, err := scanMovements(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	out := make([]TrainMatch, 0, len(baselines))
	for _, b := range baselines {
		train, err := e.GetDetailsTrain(ctx, b.TrainID)
		if err != nil {
			return nil, err
		}
		updates, err := e.updatesFor(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TrainMatch{Train: train, Baseline: b, Updates: updates})
	}
	return out, nil
}

func (e *Engine) updatesFor(ctx context.Context, baselineID string) ([]model.TrainMvt, error) {
	rows, err := e.db.QueryContext(ctx, movementSelectCols+`WHERE updates = ?`, baselineID)
	if err != nil {
		return nil, errors.Annotatef(err, "updates for %s", baselineID)
	}
	defer rows.Close()
	return scanMovements(rows)
}
