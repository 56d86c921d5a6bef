package railerr

import (
	"context"
	"net/http"
	"testing"

	"github.com/pingcap/check"
	"github.com/pingcap/errors"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type errSuite struct{}

var _ = check.Suite(&errSuite{})

func (s *errSuite) TestIsRecoversWrappedCause(c *check.C) {
	err := Newf(NotFound, "train %s", "abc123")
	c.Assert(Is(err, NotFound), check.IsTrue)
	c.Assert(Is(err, Ambiguous), check.IsFalse)
}

func (s *errSuite) TestStatusMapping(c *check.C) {
	c.Assert(Status(New(NotFound, "x")), check.Equals, http.StatusNotFound)
	c.Assert(Status(New(Ambiguous, "x")), check.Equals, http.StatusConflict)
	c.Assert(Status(New(InconsistentStore, "x")), check.Equals, http.StatusInternalServerError)
	c.Assert(Status(errors.New("plain")), check.Equals, http.StatusInternalServerError)
}

func (s *errSuite) TestIsNilSafe(c *check.C) {
	c.Assert(Is(nil, NotFound), check.IsFalse)
}

func (s *errSuite) TestDeadlineErrorsMapToTransient(c *check.C) {
	c.Assert(Status(context.DeadlineExceeded), check.Equals, http.StatusServiceUnavailable)
	c.Assert(Status(errors.Annotate(context.Canceled, "rolled back")), check.Equals, http.StatusServiceUnavailable)
}
