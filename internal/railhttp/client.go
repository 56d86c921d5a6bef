package railhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pingcap/errors"

	"github.com/trainsplorer/railcore/internal/railerr"
)

// Client is a thin JSON-over-HTTP client shared by the services that call
// out to a peer: Query Fusion calls Schedule Store and the Running-Train
// Engine; the Running-Train Engine calls the Reference Resolver and
// Schedule Store on activation.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client with a sensible per-request timeout default.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// kindByName maps the wire error body's Kind string back to a sentinel,
// so a caller of Get/Post gets the same railerr.Kind a local failure
// would have produced.
var kindByName = map[string]*railerr.Kind{
	railerr.NotFound.Error():          railerr.NotFound,
	railerr.Ambiguous.Error():         railerr.Ambiguous,
	railerr.BadRequest.Error():        railerr.BadRequest,
	railerr.HeadersMissing.Error():    railerr.HeadersMissing,
	railerr.InconsistentStore.Error(): railerr.InconsistentStore,
	railerr.Conflict.Error():          railerr.Conflict,
	railerr.RemoteUnavailable.Error(): railerr.RemoteUnavailable,
	railerr.RemoteError.Error():       railerr.RemoteError,
	railerr.Transient.Error():         railerr.Transient,
}

// Get issues a GET to c.BaseURL+path and decodes a JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return errors.Trace(err)
	}
	return c.do(req, out)
}

// Post issues a POST with a JSON-encoded body and decodes a JSON response
// into out (which may be nil to discard the body).
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Trace(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return railerr.Newf(railerr.RemoteUnavailable, "%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body errorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		kind := kindByName[body.Kind]
		if kind == nil {
			kind = railerr.RemoteError
		}
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		return railerr.Newf(kind, "%s %s: %s", req.Method, req.URL, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return railerr.Newf(railerr.RemoteError, "%s %s: decode response: %v", req.Method, req.URL, err)
	}
	return nil
}
