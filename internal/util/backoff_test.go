package util

import (
	"context"
	"testing"

	"github.com/pingcap/check"
	"github.com/pingcap/errors"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type backoffSuite struct{}

var _ = check.Suite(&backoffSuite{})

func (s *backoffSuite) TestRetrySucceedsEventually(c *check.C) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, nil)
	c.Assert(err, check.IsNil)
	c.Assert(attempts, check.Equals, 3)
}

func (s *backoffSuite) TestRetryStopsOnCancelledContext(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, func() error {
		return errors.New("always fails")
	}, nil)
	c.Assert(err, check.NotNil)
}
