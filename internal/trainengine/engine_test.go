package trainengine

import (
	"context"
	"testing"

	"github.com/pingcap/check"

	"github.com/trainsplorer/railcore/internal/darwin"
	"github.com/trainsplorer/railcore/internal/dbutil"
	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
	"github.com/trainsplorer/railcore/internal/trust"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type engineSuite struct{}

var _ = check.Suite(&engineSuite{})

func mustDate(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustTime(s string) model.Time {
	t, err := model.ParseHHMM(s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeScheduleClient returns a fixed schedule/movement set for any
// activation or authoritative-on-date lookup, so the engine's tests
// exercise Activate/ActivateFuzzy without a real Schedule Store.
type fakeScheduleClient struct {
	sched model.Schedule
	mvts  []model.ScheduleMvt
	err   error
}

func (f fakeScheduleClient) FindForActivation(ctx context.Context, uid string, stp model.STPIndicator, startDate model.Date, source model.Source) (model.Schedule, []model.ScheduleMvt, error) {
	return f.sched, f.mvts, f.err
}

func (f fakeScheduleClient) FindAuthoritativeOnDate(ctx context.Context, uid string, date model.Date, source model.Source) (model.Schedule, []model.ScheduleMvt, error) {
	return f.sched, f.mvts, f.err
}

// fakeReferenceClient maps STANOX to a fixed TIPLOC set.
type fakeReferenceClient struct{ tiplocs map[string][]string }

func (f fakeReferenceClient) StanoxToTiplocs(ctx context.Context, stanox string) ([]string, error) {
	tiplocs, ok := f.tiplocs[stanox]
	if !ok {
		return nil, nil
	}
	return tiplocs, nil
}

func sampleMovements() []model.ScheduleMvt {
	return []model.ScheduleMvt{
		{TIPLOC: "CLPHMJC", Action: model.ActionDeparture, WorkingTime: mustTime("08:00")},
		{TIPLOC: "MDNHEAD", Action: model.ActionArrival, WorkingTime: mustTime("08:40")},
	}
}

func newTestEngine(c *check.C, schedules ScheduleClient, reference ReferenceClient) *Engine {
	db, err := dbutil.Open(context.Background(), dbutil.Config{Path: ":memory:"})
	c.Assert(err, check.IsNil)
	engine := New(db, schedules, reference)
	c.Assert(engine.Init(context.Background()), check.IsNil)
	return engine
}

func (s *engineSuite) TestActivateIsIdempotent(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	engine := newTestEngine(c, schedules, fakeReferenceClient{})

	train1, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)
	c.Assert(train1.Activated, check.IsTrue)

	train2, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)
	c.Assert(train2.ID, check.Equals, train1.ID)

	_, mvts, err := engine.GetDetails(context.Background(), train1.ID)
	c.Assert(err, check.IsNil)
	c.Assert(mvts, check.HasLen, 2)
}

func (s *engineSuite) TestActivateFuzzyCreatesStubWhenNoAuthoritativeSchedule(c *check.C) {
	schedules := fakeScheduleClient{err: railerr.Newf(railerr.NotFound, "no schedule")}
	engine := newTestEngine(c, schedules, fakeReferenceClient{})

	train, err := engine.ActivateFuzzy(context.Background(), "C99999", mustDate("2024-03-04"), "rid-1")
	c.Assert(err, check.IsNil)
	c.Assert(train.Activated, check.IsFalse)
	c.Assert(train.DarwinRID, check.Equals, "rid-1")

	again, err := engine.ActivateFuzzy(context.Background(), "C99999", mustDate("2024-03-04"), "rid-1")
	c.Assert(err, check.IsNil)
	c.Assert(again.ID, check.Equals, train.ID)
}

func (s *engineSuite) TestApplyTrustMovementResolvesStanoxAndOverridesBaseline(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	reference := fakeReferenceClient{tiplocs: map[string][]string{"87701": {"CLPHMJC"}}}
	engine := newTestEngine(c, schedules, reference)

	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)

	upd := trust.Update{
		STANOX: "87701", PlannedTime: mustTime("08:00"), PlannedAction: model.ActionDeparture,
		ActualTime: mustTime("08:02"), Platform: "4",
	}
	mvt, err := engine.ApplyTrustMovement(context.Background(), train.ID, upd)
	c.Assert(err, check.IsNil)
	c.Assert(mvt.Actual, check.IsTrue)
	c.Assert(mvt.Time, check.Equals, mustTime("08:02"))
	c.Assert(mvt.Source, check.Equals, model.MvtTRUST)

	// Re-applying replaces the prior TRUST update rather than stacking.
	upd.ActualTime = mustTime("08:03")
	mvt2, err := engine.ApplyTrustMovement(context.Background(), train.ID, upd)
	c.Assert(err, check.IsNil)
	c.Assert(mvt2.Time, check.Equals, mustTime("08:03"))

	_, mvts, err := engine.GetDetails(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	trustUpdates := 0
	for _, m := range mvts {
		if m.Source == model.MvtTRUST {
			trustUpdates++
		}
	}
	c.Assert(trustUpdates, check.Equals, 1)
}

func (s *engineSuite) TestApplyDarwinMovementAndRemoveActual(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	engine := newTestEngine(c, schedules, fakeReferenceClient{})

	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)

	upd := darwin.Update{
		TIPLOC: "MDNHEAD", Action: model.ActionArrival, PlannedTime: mustTime("08:40"),
		UpdatedTime: mustTime("08:45"), TimeActual: false, Platform: "2",
	}
	mvt, err := engine.ApplyDarwinMovement(context.Background(), train.ID, upd)
	c.Assert(err, check.IsNil)
	c.Assert(mvt.Source, check.Equals, model.MvtDarwin)
	c.Assert(mvt.Time, check.Equals, mustTime("08:45"))

	// A newer prediction replaces the old one wholesale: exactly one
	// Darwin movement remains, carrying the latest payload.
	upd.UpdatedTime = mustTime("08:46")
	mvt2, err := engine.ApplyDarwinMovement(context.Background(), train.ID, upd)
	c.Assert(err, check.IsNil)
	c.Assert(mvt2.Time, check.Equals, mustTime("08:46"))

	_, mvts, err := engine.GetDetails(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	darwinMvts := 0
	for _, m := range mvts {
		if m.Source == model.MvtDarwin {
			darwinMvts++
			c.Assert(m.Time, check.Equals, mustTime("08:46"))
		}
	}
	c.Assert(darwinMvts, check.Equals, 1)

	key := PlannedKey{TIPLOC: "MDNHEAD", Action: model.ActionArrival, Time: mustTime("08:40")}
	c.Assert(engine.RemoveDarwinActual(context.Background(), train.ID, key), check.IsNil)

	_, mvts, err = engine.GetDetails(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	for _, m := range mvts {
		c.Assert(m.Source == model.MvtDarwin, check.IsFalse)
	}
}

func (s *engineSuite) TestCancelAndTerminateSetFlags(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	engine := newTestEngine(c, schedules, fakeReferenceClient{})
	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)

	c.Assert(engine.Cancel(context.Background(), train.ID), check.IsNil)
	got, err := engine.GetDetailsTrain(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got.Cancelled, check.IsTrue)

	c.Assert(engine.Terminate(context.Background(), train.ID), check.IsNil)
	got, err = engine.GetDetailsTrain(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	c.Assert(got.Terminated, check.IsTrue)
}

// TestMovementsThroughIncludesBaselineReachableOnlyViaUpdate: a train
// whose baseline is well outside the query window must still surface if
// a TRUST or Darwin update against that baseline falls inside it, the
// common case for a running-late train on a departure board.
func (s *engineSuite) TestMovementsThroughIncludesBaselineReachableOnlyViaUpdate(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	reference := fakeReferenceClient{tiplocs: map[string][]string{"87701": {"CLPHMJC"}}}
	engine := newTestEngine(c, schedules, reference)

	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)

	// Baseline departure is 08:00; the TRUST actual puts the train through
	// at 09:30 instead.
	upd := trust.Update{
		STANOX: "87701", PlannedTime: mustTime("08:00"), PlannedAction: model.ActionDeparture,
		ActualTime: mustTime("09:30"),
	}
	_, err = engine.ApplyTrustMovement(context.Background(), train.ID, upd)
	c.Assert(err, check.IsNil)

	// A window nowhere near either the baseline (08:00) or its update
	// (09:30) matches nothing.
	matches, err := engine.MovementsThrough(context.Background(), "CLPHMJC", mustDate("2024-03-04"), mustTime("12:00"), 600)
	c.Assert(err, check.IsNil)
	c.Assert(matches, check.HasLen, 0)

	// A window around the update time, well outside the baseline's own
	// 08:00, must still surface the group via its update.
	matches, err = engine.MovementsThrough(context.Background(), "CLPHMJC", mustDate("2024-03-04"), mustTime("09:30"), 600)
	c.Assert(err, check.IsNil)
	c.Assert(matches, check.HasLen, 1)
	c.Assert(matches[0].Baseline.Time, check.Equals, mustTime("08:00"))
	c.Assert(matches[0].Updates, check.HasLen, 1)
	c.Assert(matches[0].Updates[0].Time, check.Equals, mustTime("09:30"))
}

func (s *engineSuite) TestAttachTrustIdRejectsConflictingValue(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	engine := newTestEngine(c, schedules, fakeReferenceClient{})
	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)

	c.Assert(engine.AttachTrustId(context.Background(), train.ID, "T1"), check.IsNil)
	c.Assert(engine.AttachTrustId(context.Background(), train.ID, "T1"), check.IsNil)
	c.Assert(railerr.Is(engine.AttachTrustId(context.Background(), train.ID, "T2"), railerr.Conflict), check.IsTrue)
}

// A TRUST actual and a later Darwin prediction for the same baseline
// coexist: neither replaces the other, only same-source updates do.
func (s *engineSuite) TestTrustAndDarwinUpdatesCoexistOnOneBaseline(c *check.C) {
	schedules := fakeScheduleClient{
		sched: model.Schedule{UID: "C12345", StartDate: mustDate("2024-03-01"), STPIndicator: model.STPPermanent, Source: model.SourceITPS},
		mvts:  sampleMovements(),
	}
	reference := fakeReferenceClient{tiplocs: map[string][]string{"87701": {"CLPHMJC"}}}
	engine := newTestEngine(c, schedules, reference)

	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)

	_, err = engine.ApplyTrustMovement(context.Background(), train.ID, trust.Update{
		STANOX: "87701", PlannedTime: mustTime("08:00"), PlannedAction: model.ActionDeparture,
		ActualTime: mustTime("08:02"),
	})
	c.Assert(err, check.IsNil)

	_, err = engine.ApplyDarwinMovement(context.Background(), train.ID, darwin.Update{
		TIPLOC: "CLPHMJC", Action: model.ActionDeparture, PlannedTime: mustTime("08:00"),
		UpdatedTime: mustTime("08:03"), TimeActual: false,
	})
	c.Assert(err, check.IsNil)

	_, mvts, err := engine.GetDetails(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	var gotTrust, gotDarwin *model.TrainMvt
	for i := range mvts {
		switch mvts[i].Source {
		case model.MvtTRUST:
			gotTrust = &mvts[i]
		case model.MvtDarwin:
			gotDarwin = &mvts[i]
		}
	}
	c.Assert(gotTrust, check.NotNil)
	c.Assert(gotDarwin, check.NotNil)
	c.Assert(gotTrust.Actual, check.IsTrue)
	c.Assert(gotDarwin.Actual, check.IsFalse)
	c.Assert(gotTrust.Updates, check.Equals, gotDarwin.Updates)
}
