package trainengine

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phayes/freeport"
	"github.com/pingcap/check"

	"github.com/trainsplorer/railcore/internal/dbutil"
	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/schedulestore"
)

// TestActivateOverRealHTTP exercises Activate against a real Schedule
// Store service bound to an ephemeral port, rather than the in-process
// fakeScheduleClient the rest of this package's tests use. It is the one
// place the HTTP+JSON transport is driven end to end between two of the
// four services.
func (s *engineSuite) TestActivateOverRealHTTP(c *check.C) {
	scheduleDB, err := dbutil.Open(context.Background(), dbutil.Config{Path: ":memory:"})
	c.Assert(err, check.IsNil)
	store := schedulestore.New(scheduleDB)
	c.Assert(store.Init(context.Background()), check.IsNil)

	weekdays, err := model.WeekdaysFromCIF("1111100")
	c.Assert(err, check.IsNil)
	sched := model.Schedule{
		UID: "C12345", StartDate: mustDate("2024-03-01"), EndDate: mustDate("2024-03-31"),
		Weekdays: weekdays, STPIndicator: model.STPPermanent, Source: model.SourceITPS,
	}
	_, _, err = store.Upsert(context.Background(), sched, sampleMovements())
	c.Assert(err, check.IsNil)

	port, err := freeport.GetFreePort()
	c.Assert(err, check.IsNil)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	listener, err := net.Listen("tcp", addr)
	c.Assert(err, check.IsNil)

	router := chi.NewRouter()
	schedulestore.Routes(router, store)
	srv := &http.Server{Handler: router}
	go srv.Serve(listener) //nolint:errcheck
	defer srv.Close()

	engine := newTestEngine(c, NewHTTPScheduleClient("http://"+addr), fakeReferenceClient{})
	train, err := engine.Activate(context.Background(), "C12345", mustDate("2024-03-01"), model.STPPermanent, model.SourceITPS, mustDate("2024-03-04"))
	c.Assert(err, check.IsNil)
	c.Assert(train.Activated, check.IsTrue)

	_, mvts, err := engine.GetDetails(context.Background(), train.ID)
	c.Assert(err, check.IsNil)
	c.Assert(mvts, check.HasLen, 2)
}
