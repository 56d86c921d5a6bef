package cif

import (
	"testing"

	"github.com/pingcap/check"

	"github.com/trainsplorer/railcore/internal/model"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type cifSuite struct{}

var _ = check.Suite(&cifSuite{})

func (s *cifSuite) TestParseCIFTime(c *check.C) {
	t, err := ParseCIFTime("0805")
	c.Assert(err, check.IsNil)
	c.Assert(t.String(), check.Equals, "08:05")

	half, err := ParseCIFTime("0805H")
	c.Assert(err, check.IsNil)
	c.Assert(half.String(), check.Equals, "08:05:30")

	_, err = ParseCIFTime("805")
	c.Assert(err, check.NotNil)
}

func ptr(s string) *string { return &s }

func (s *cifSuite) TestBuildAssignsMidnightDayOffsets(c *check.C) {
	rec := ScheduleRecord{
		UID:          "C12345",
		StartDate:    "2024-03-01",
		EndDate:      "2024-03-31",
		Weekdays:     "1111100",
		STPIndicator: "P",
		Locations: []LocationRecord{
			{TIPLOC: "PADTON", Departure: ptr("2230")},
			{TIPLOC: "READING", Arrival: ptr("2345"), Departure: ptr("2350")},
			{TIPLOC: "SWINDON", Arrival: ptr("0015")},
		},
	}
	sched, mvts, err := Build(rec, model.SourceITPS)
	c.Assert(err, check.IsNil)
	c.Assert(sched.CrossesMidnight, check.IsTrue)
	c.Assert(sched.UID, check.Equals, "C12345")
	c.Assert(len(mvts), check.Equals, 4)
	c.Assert(mvts[0].DayOffset, check.Equals, 0)
	c.Assert(mvts[1].DayOffset, check.Equals, 0)
	c.Assert(mvts[2].DayOffset, check.Equals, 0)
	c.Assert(mvts[3].DayOffset, check.Equals, 1)
	c.Assert(mvts[3].Action, check.Equals, model.ActionArrival)
}

func (s *cifSuite) TestBuildRejectsEmptyLocations(c *check.C) {
	rec := ScheduleRecord{UID: "C1", StartDate: "2024-03-01", EndDate: "2024-03-31", Weekdays: "1111100", STPIndicator: "P"}
	_, _, err := Build(rec, model.SourceITPS)
	c.Assert(err, check.NotNil)
}

func (s *cifSuite) TestBuildPassLocation(c *check.C) {
	rec := ScheduleRecord{
		UID: "C2", StartDate: "2024-03-01", EndDate: "2024-03-31", Weekdays: "1111100", STPIndicator: "N",
		Locations: []LocationRecord{
			{TIPLOC: "A", Departure: ptr("0800")},
			{TIPLOC: "B", Pass: ptr("0810")},
			{TIPLOC: "C", Arrival: ptr("0820")},
		},
	}
	_, mvts, err := Build(rec, model.SourceITPS)
	c.Assert(err, check.IsNil)
	c.Assert(mvts[1].Action, check.Equals, model.ActionPass)
}

func (s *cifSuite) TestDecodeLineTimetableMetadata(c *check.C) {
	line, err := DecodeLine([]byte(`{"JsonTimetableV1":{"sequence":694,"timestamp":1709251200,"owner":"Network Rail"}}`))
	c.Assert(err, check.IsNil)
	c.Assert(line.Timetable, check.NotNil)
	c.Assert(line.Timetable.Sequence, check.Equals, int64(694))
	c.Assert(line.IsEOF(), check.IsFalse)
}

func (s *cifSuite) TestDecodeLineScheduleDelete(c *check.C) {
	line, err := DecodeLine([]byte(`{"JsonScheduleV1":{"transaction_type":"Delete","uid":"C12345","start_date":"2024-03-01","stp_indicator":"P"}}`))
	c.Assert(err, check.IsNil)
	c.Assert(line.Schedule, check.NotNil)
	c.Assert(line.Schedule.IsDelete(), check.IsTrue)

	key, err := line.Schedule.Key(model.SourceITPS)
	c.Assert(err, check.IsNil)
	c.Assert(key.UID, check.Equals, "C12345")
	c.Assert(key.STPIndicator, check.Equals, model.STPPermanent)
}

func (s *cifSuite) TestDecodeLineTiplocMapsToReferenceEntry(c *check.C) {
	line, err := DecodeLine([]byte(`{"TiplocV1":{"tiploc":"CLPHMJC","stanox":"87219","crs":"CLJ","description":"Clapham Junction"}}`))
	c.Assert(err, check.IsNil)
	c.Assert(line.Tiploc, check.NotNil)
	entry := line.Tiploc.ToReferenceEntry()
	c.Assert(entry.TIPLOC, check.Equals, "CLPHMJC")
	c.Assert(entry.STANOX, check.Equals, "87219")
	c.Assert(entry.Name, check.Equals, "Clapham Junction")
}

func (s *cifSuite) TestDecodeLineEOFAndUnknownKind(c *check.C) {
	line, err := DecodeLine([]byte(`{"EOF":true}`))
	c.Assert(err, check.IsNil)
	c.Assert(line.IsEOF(), check.IsTrue)

	_, err = DecodeLine([]byte(`{"SomethingElse":{}}`))
	c.Assert(err, check.NotNil)
}
