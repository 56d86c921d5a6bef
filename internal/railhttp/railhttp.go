// Package railhttp holds the small set of HTTP conventions shared by all
// four services' chi routers: JSON encoding/decoding and mapping a
// railerr.Kind to the right status code and body.
package railhttp

import (
	"encoding/json"
	"net/http"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/trainsplorer/railcore/internal/railerr"
)

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response body", zap.Error(err))
	}
}

// DecodeJSON decodes the request body into v, returning a railerr.BadRequest
// on malformed JSON.
func DecodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return railerr.Newf(railerr.BadRequest, "decode request body: %v", err)
	}
	return nil
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteError maps err to its railerr status (500 if err carries no known
// Kind) and writes a JSON error body. It logs server errors (5xx) at warn
// level, since those indicate a bug or an upstream outage rather than bad
// caller input.
func WriteError(w http.ResponseWriter, err error) {
	status := railerr.Status(err)
	kind := ""
	if k, ok := errors.Cause(err).(*railerr.Kind); ok {
		kind = k.Error()
	}
	if status >= 500 {
		log.Warn("request failed", zap.Error(err), zap.Int("status", status))
	}
	WriteJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}
