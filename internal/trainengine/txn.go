package trainengine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
)

// immediateConn wraps a dedicated connection holding a BEGIN IMMEDIATE
// transaction: sqlite takes the write lock at BEGIN rather than at first
// write, so every read this connection does afterwards sees a
// consistent, exclusively-held snapshot through to COMMIT.
type immediateConn struct {
	conn *sql.Conn
	done bool
}

func (e *Engine) beginImmediate(ctx context.Context) (*immediateConn, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, errors.Annotate(err, "begin immediate")
	}
	return &immediateConn{conn: conn}, nil
}

func (c *immediateConn) commit(ctx context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	_, err := c.conn.ExecContext(ctx, "COMMIT")
	if err != nil {
		// ctx may already be done; the transaction must still end before
		// the connection goes back to the pool.
		c.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
	}
	closeErr := c.conn.Close()
	if err != nil {
		return errors.Annotate(err, "commit")
	}
	return errors.Trace(closeErr)
}

// rollback is safe to call after a successful commit; it is a no-op. It
// runs ROLLBACK even when ctx is already done (an expired request deadline).
func (c *immediateConn) rollback(ctx context.Context) {
	if c.done {
		return
	}
	c.done = true
	c.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
	c.conn.Close()
}

// findTrustBaseline selects the single baseline movement a TRUST report
// applies to: one of the given tiplocs, at the reported planned time and
// day offset, not itself an update, matching the reported action or a
// scheduled Pass (TRUST reports arrivals/departures at locations the
// schedule may only show passing through).
func (c *immediateConn) findTrustBaseline(ctx context.Context, trainID string, tiplocs []string, dayOffset int, at model.Time, action model.Action) (model.TrainMvt, error) {
	placeholders := make([]string, len(tiplocs))
	args := make([]interface{}, 0, len(tiplocs)+4)
	args = append(args, trainID)
	for i, t := range tiplocs {
		placeholders[i] = "?"
		args = append(args, t)
	}
	args = append(args, dayOffset, int(at), int(action), int(model.ActionPass))

	query := movementSelectCols + `WHERE train_id = ? AND updates IS NULL AND tiploc IN (` + strings.Join(placeholders, ",") +
		`) AND day_offset = ? AND time = ? AND (action = ? OR action = ?)`
	return c.selectOneBaseline(ctx, query, args)
}

// findDarwinBaseline selects the single baseline movement a Darwin
// forecast applies to: an exact match on tiploc, action, planned time and
// day offset.
func (c *immediateConn) findDarwinBaseline(ctx context.Context, trainID, tiploc string, action model.Action, dayOffset int, at model.Time) (model.TrainMvt, error) {
	query := movementSelectCols + `WHERE train_id = ? AND updates IS NULL AND tiploc = ? AND action = ? AND day_offset = ? AND time = ?`
	return c.selectOneBaseline(ctx, query, []interface{}{trainID, tiploc, int(action), dayOffset, int(at)})
}

func (c *immediateConn) selectOneBaseline(ctx context.Context, query string, args []interface{}) (model.TrainMvt, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return model.TrainMvt{}, errors.Trace(err)
	}
	defer rows.Close()

	matches, err := scanMovements(rows)
	if err != nil {
		return model.TrainMvt{}, err
	}
	switch len(matches) {
	case 0:
		return model.TrainMvt{}, railerr.New(railerr.NotFound, "no matching baseline movement")
	case 1:
		return matches[0], nil
	default:
		return model.TrainMvt{}, railerr.Newf(railerr.Ambiguous, "%d baseline movements match", len(matches))
	}
}

func (c *immediateConn) deleteUpdatesBySource(ctx context.Context, trainID, baselineID string, source model.MvtSource) error {
	_, err := c.conn.ExecContext(ctx, `DELETE FROM train_movements WHERE train_id = ? AND updates = ? AND source = ?`, trainID, baselineID, int(source))
	return errors.Annotate(err, "delete prior update")
}

func (c *immediateConn) insertMovement(ctx context.Context, m model.TrainMvt) error {
	var pub sql.NullInt64
	if m.PublicTime != nil {
		pub = sql.NullInt64{Int64: int64(*m.PublicTime), Valid: true}
	}
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO train_movements (id, train_id, updates, tiploc, action, actual, time, day_offset, public_time, source, platform, platform_suppress, unknown_delay)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TrainID, m.Updates, m.TIPLOC, int(m.Action), boolToInt(m.Actual), int(m.Time), m.DayOffset, pub, int(m.Source),
		nullableString(m.Platform), boolToInt(m.PlatformSuppr), boolToInt(m.UnknownDelay))
	return errors.Annotate(err, "insert movement")
}
