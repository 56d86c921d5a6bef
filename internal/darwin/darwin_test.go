package darwin

import (
	"encoding/xml"
	"testing"

	"github.com/pingcap/check"

	"github.com/trainsplorer/railcore/internal/model"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type darwinSuite struct{}

var _ = check.Suite(&darwinSuite{})

func (s *darwinSuite) TestFlattenPicksActualOverEstimated(c *check.C) {
	ts := TS{
		RID: "202403150001",
		Locations: []Location{
			{
				TIPLOC:        "CLPHMJC",
				CircularTimes: CircularTimes{WTD: "08:00"},
				Dep:           &ArrDepPass{AT: "08:05", WET: "08:04"},
			},
		},
	}
	updates, err := Flatten(ts)
	c.Assert(err, check.IsNil)
	c.Assert(updates, check.HasLen, 1)
	c.Assert(updates[0].UpdatedTime.String(), check.Equals, "08:05")
	c.Assert(updates[0].TimeActual, check.IsTrue)
	c.Assert(updates[0].Action, check.Equals, model.ActionDeparture)
}

func (s *darwinSuite) TestFlattenFallsBackToWorkingEstimate(c *check.C) {
	ts := TS{
		Locations: []Location{
			{TIPLOC: "A", CircularTimes: CircularTimes{WTA: "09:00"}, Arr: &ArrDepPass{WET: "09:03", ET: "09:04"}},
		},
	}
	updates, err := Flatten(ts)
	c.Assert(err, check.IsNil)
	c.Assert(updates[0].UpdatedTime.String(), check.Equals, "09:03")
	c.Assert(updates[0].TimeActual, check.IsFalse)
}

func (s *darwinSuite) TestFlattenSkipsActivityWithNoTime(c *check.C) {
	ts := TS{
		Locations: []Location{
			{TIPLOC: "A", CircularTimes: CircularTimes{WTA: "09:00"}, Arr: &ArrDepPass{}},
		},
	}
	updates, err := Flatten(ts)
	c.Assert(err, check.IsNil)
	c.Assert(updates, check.HasLen, 0)
}

func (s *darwinSuite) TestFlattenCrossesMidnight(c *check.C) {
	ts := TS{
		Locations: []Location{
			{TIPLOC: "A", CircularTimes: CircularTimes{WTD: "23:50"}, Dep: &ArrDepPass{AT: "23:51"}},
			{TIPLOC: "B", CircularTimes: CircularTimes{WTA: "00:05"}, Arr: &ArrDepPass{AT: "00:06"}},
		},
	}
	updates, err := Flatten(ts)
	c.Assert(err, check.IsNil)
	c.Assert(updates, check.HasLen, 2)
	c.Assert(updates[0].PlannedDayOffset, check.Equals, 0)
	c.Assert(updates[1].PlannedDayOffset, check.Equals, 1)
}

func (s *darwinSuite) TestFlattenMarksActualRemoved(c *check.C) {
	ts := TS{
		Locations: []Location{
			{TIPLOC: "A", CircularTimes: CircularTimes{WTA: "09:00"}, Arr: &ArrDepPass{ATRemoved: true, ET: "09:05"}},
		},
	}
	updates, err := Flatten(ts)
	c.Assert(err, check.IsNil)
	c.Assert(updates[0].ATRemoved, check.IsTrue)
}

func (s *darwinSuite) TestEnvelopeUnmarshal(c *check.C) {
	data := []byte(`<Pport ts="2024-03-15T08:00:00Z" version="18.0">
  <uR>
    <TS rid="202403150001" uid="C12345" ssd="2024-03-15">
      <Location tpl="CLPHMJC" wtd="08:00">
        <dep at="08:02"/>
      </Location>
    </TS>
  </uR>
</Pport>`)
	var env Envelope
	c.Assert(xml.Unmarshal(data, &env), check.IsNil)
	c.Assert(env.Update, check.NotNil)
	c.Assert(env.TSList(), check.HasLen, 1)
	c.Assert(env.TSList()[0].RID, check.Equals, "202403150001")
}
