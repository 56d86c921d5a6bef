package queryfusion

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
	"github.com/trainsplorer/railcore/internal/railhttp"
)

// Routes mounts Query Fusion's unified departure-board-style HTTP API
// onto r. This is the query surface front-ends call; the per-service
// endpoints it fuses (/schedule-movements/through/... and
// /train-movements/through/...) live on the Schedule Store and
// Running-Train Engine services themselves.
func Routes(r chi.Router, fusion *Fusion) {
	r.Get("/movements/through/{tiploc}/at/{ts}/within-secs/{dur}", handleMovementsThrough(fusion))
}

func handleMovementsThrough(fusion *Fusion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := model.ParseHHMM(chi.URLParam(r, "ts"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		date, err := model.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "missing or invalid ?date="))
			return
		}
		dur, err := strconv.Atoi(chi.URLParam(r, "dur"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		resp, err := fusion.MovementsThroughNamed(r.Context(), chi.URLParam(r, "tiploc"), date, ts, dur)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, resp)
	}
}
