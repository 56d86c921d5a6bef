package queryfusion

import (
	"context"
	"testing"

	"github.com/pingcap/check"
	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/model"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type fusionSuite struct{}

var _ = check.Suite(&fusionSuite{})

type fakeScheduleClient struct{ matches []ScheduleMatch }

func (f fakeScheduleClient) MovementsThrough(context.Context, string, model.Date, model.Time, int) ([]ScheduleMatch, error) {
	return f.matches, nil
}

type fakeTrainClient struct{ matches []TrainMatch }

func (f fakeTrainClient) MovementsThrough(context.Context, string, model.Date, model.Time, int) ([]TrainMatch, error) {
	return f.matches, nil
}

type fakeReferenceClient struct{ names map[string][2]string }

func (f fakeReferenceClient) TiplocName(_ context.Context, tiploc string) (string, string, error) {
	pair, ok := f.names[tiploc]
	if !ok {
		return "", "", errNoSuchTiploc
	}
	return pair[0], pair[1], nil
}

var errNoSuchTiploc = errors.New("no such tiploc")

func mustTime(s string) model.Time {
	t, err := model.ParseHHMM(s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustDate(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestQueryFusionDedupAndCollapse reproduces S5: two schedules pass
// through MDNHEAD at 09:00 and 09:15; one is activated with a TRUST
// actual of 09:02. The activated schedule's own 09:00 scheduled
// descriptor must not appear, and the train's collapsed descriptor must
// reflect the TRUST actual time.
func (s *fusionSuite) TestQueryFusionDedupAndCollapse(c *check.C) {
	activeKey := model.ScheduleKey{UID: "U1", StartDate: mustDate("2024-05-02"), STPIndicator: model.STPPermanent, Source: model.SourceITPS}
	scheduled := ScheduleMatch{
		Schedule: model.Schedule{UID: "U1", StartDate: activeKey.StartDate, STPIndicator: activeKey.STPIndicator, Source: activeKey.Source, VersionID: "v1"},
		Movement: model.ScheduleMvt{TIPLOC: "MDNHEAD", Action: model.ActionArrival, WorkingTime: mustTime("09:00")},
	}
	otherScheduled := ScheduleMatch{
		Schedule: model.Schedule{UID: "U2", StartDate: mustDate("2024-05-02"), STPIndicator: model.STPPermanent, Source: model.SourceITPS, VersionID: "v2"},
		Movement: model.ScheduleMvt{TIPLOC: "MDNHEAD", Action: model.ActionArrival, WorkingTime: mustTime("09:15")},
	}
	train := TrainMatch{
		Train:    model.Train{ID: "t1", UID: "U1", StartDate: activeKey.StartDate, STPIndicator: activeKey.STPIndicator, Source: activeKey.Source, Activated: true},
		Baseline: model.TrainMvt{ID: "b1", TrainID: "t1", TIPLOC: "MDNHEAD", Action: model.ActionArrival, Time: mustTime("09:00")},
		Updates: []model.TrainMvt{
			{ID: "u1", TrainID: "t1", Updates: "b1", TIPLOC: "MDNHEAD", Action: model.ActionArrival, Time: mustTime("09:02"), Actual: true, Source: model.MvtTRUST},
		},
	}

	fusion := New(fakeScheduleClient{[]ScheduleMatch{scheduled, otherScheduled}}, fakeTrainClient{[]TrainMatch{train}}, nil)
	out, err := fusion.MovementsThrough(context.Background(), "MDNHEAD", mustDate("2024-05-02"), mustTime("09:00"), 1800)
	c.Assert(err, check.IsNil)
	c.Assert(out, check.HasLen, 2)

	c.Assert(out[0].TrainID, check.Equals, "t1")
	c.Assert(out[0].EffectiveTime, check.Equals, mustTime("09:02"))
	c.Assert(out[0].Actual, check.IsTrue)

	c.Assert(out[1].ScheduledOnly, check.IsTrue)
	c.Assert(out[1].EffectiveTime, check.Equals, mustTime("09:15"))
}

func (s *fusionSuite) TestCollapsePrefersTrustOverDarwin(c *check.C) {
	train := TrainMatch{
		Train:    model.Train{ID: "t1", Activated: true},
		Baseline: model.TrainMvt{ID: "b1", TrainID: "t1", TIPLOC: "CLPHMJC", Action: model.ActionDeparture, Time: mustTime("08:00")},
		Updates: []model.TrainMvt{
			{ID: "d1", Updates: "b1", Time: mustTime("08:05"), Actual: false, Source: model.MvtDarwin},
			{ID: "u1", Updates: "b1", Time: mustTime("08:02"), Actual: true, Source: model.MvtTRUST},
		},
	}
	d := collapse(train)
	c.Assert(d.EffectiveTime, check.Equals, mustTime("08:02"))
	c.Assert(d.Actual, check.IsTrue)
}

func (s *fusionSuite) TestCollapseFallsBackToDarwinWithoutTrust(c *check.C) {
	train := TrainMatch{
		Train:    model.Train{ID: "t1", Activated: true},
		Baseline: model.TrainMvt{ID: "b1", TIPLOC: "CLPHMJC", Action: model.ActionDeparture, Time: mustTime("08:00")},
		Updates: []model.TrainMvt{
			{ID: "d1", Updates: "b1", Time: mustTime("08:05"), Actual: false, Source: model.MvtDarwin, PlatformSuppr: true},
		},
	}
	d := collapse(train)
	c.Assert(d.EffectiveTime, check.Equals, mustTime("08:05"))
	c.Assert(d.Actual, check.IsFalse)
	c.Assert(d.PlatformSuppress, check.IsTrue)
}

func (s *fusionSuite) TestMovementsThroughNamedEnrichesLocation(c *check.C) {
	scheduled := ScheduleMatch{
		Schedule: model.Schedule{UID: "U1", StartDate: mustDate("2024-05-02"), STPIndicator: model.STPPermanent, Source: model.SourceITPS, VersionID: "v1"},
		Movement: model.ScheduleMvt{TIPLOC: "MDNHEAD", Action: model.ActionArrival, WorkingTime: mustTime("09:15")},
	}
	reference := fakeReferenceClient{names: map[string][2]string{"MDNHEAD": {"MAI", "Maidenhead"}}}

	fusion := New(fakeScheduleClient{[]ScheduleMatch{scheduled}}, fakeTrainClient{}, reference)
	resp, err := fusion.MovementsThroughNamed(context.Background(), "MDNHEAD", mustDate("2024-05-02"), mustTime("09:00"), 1800)
	c.Assert(err, check.IsNil)
	c.Assert(resp.TIPLOC, check.Equals, "MDNHEAD")
	c.Assert(resp.CRS, check.Equals, "MAI")
	c.Assert(resp.Name, check.Equals, "Maidenhead")
	c.Assert(resp.Descriptors, check.HasLen, 1)
}

func (s *fusionSuite) TestMovementsThroughNamedToleratesUnknownTiploc(c *check.C) {
	fusion := New(fakeScheduleClient{}, fakeTrainClient{}, fakeReferenceClient{})
	resp, err := fusion.MovementsThroughNamed(context.Background(), "NOPE", mustDate("2024-05-02"), mustTime("09:00"), 1800)
	c.Assert(err, check.IsNil)
	c.Assert(resp.Name, check.Equals, "")
	c.Assert(resp.Descriptors, check.HasLen, 0)
}
