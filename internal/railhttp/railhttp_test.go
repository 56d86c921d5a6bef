package railhttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pingcap/check"

	"github.com/trainsplorer/railcore/internal/railerr"
)

func TestSuite(t *testing.T) { check.TestingT(t) }

type railhttpSuite struct{}

var _ = check.Suite(&railhttpSuite{})

func (s *railhttpSuite) TestWriteJSON(c *check.C) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"a": "b"})
	c.Assert(rec.Code, check.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), check.Equals, "{\"a\":\"b\"}\n")
}

func (s *railhttpSuite) TestDecodeJSONRejectsMalformedBody(c *check.C) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	var v map[string]string
	err := DecodeJSON(req, &v)
	c.Assert(railerr.Is(err, railerr.BadRequest), check.IsTrue)
}

func (s *railhttpSuite) TestWriteErrorMapsKindToStatus(c *check.C) {
	rec := httptest.NewRecorder()
	WriteError(rec, railerr.New(railerr.NotFound, "train not found"))
	c.Assert(rec.Code, check.Equals, http.StatusNotFound)
	c.Assert(rec.Body.String(), check.Matches, "(?s).*not found.*")
}
