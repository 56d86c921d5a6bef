package trainengine

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trainsplorer/railcore/internal/darwin"
	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
	"github.com/trainsplorer/railcore/internal/railhttp"
	"github.com/trainsplorer/railcore/internal/trust"
)

// Routes mounts the running-train engine's HTTP API onto r.
func Routes(r chi.Router, engine *Engine) {
	r.Post("/trains/activate", handleActivate(engine))
	r.Post("/trains/activate-fuzzy", handleActivateFuzzy(engine))
	r.Post("/trains/{id}/trust-id/{trust_id}", handleAttachTrustId(engine))
	r.Post("/trains/{id}/terminate", handleTerminate(engine))
	r.Post("/trains/{id}/cancel", handleCancel(engine))
	r.Post("/trains/{id}/trust-movement", handleTrustMovement(engine))
	r.Post("/trains/{id}/darwin/update", handleDarwinMovement(engine))
	r.Post("/trains/{id}/darwin/remove-actual", handleRemoveDarwinActual(engine))
	r.Get("/trains/by-trust-id/{tid}/{date}", handleByTrustId(engine))
	r.Get("/trains/by-darwin-rid/{rid}", handleByDarwinRid(engine))
	r.Get("/train/{id}", handleGetDetails(engine))
	r.Get("/train-movements/through/{tiploc}/at/{ts}/within-secs/{dur}", handleMovementsThrough(engine))
}

type activateRequest struct {
	UID            string             `json:"uid"`
	StartDate      model.Date         `json:"start_date"`
	STPIndicator   model.STPIndicator `json:"stp_indicator"`
	Source         model.Source       `json:"source"`
	ActivationDate model.Date         `json:"activation_date"`
}

func handleActivate(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activateRequest
		if err := railhttp.DecodeJSON(r, &req); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		train, err := engine.Activate(r.Context(), req.UID, req.StartDate, req.STPIndicator, req.Source, req.ActivationDate)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, train)
	}
}

type activateFuzzyRequest struct {
	UID       string     `json:"uid"`
	Date      model.Date `json:"activation_date"`
	DarwinRID string     `json:"darwin_rid"`
}

func handleActivateFuzzy(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activateFuzzyRequest
		if err := railhttp.DecodeJSON(r, &req); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		train, err := engine.ActivateFuzzy(r.Context(), req.UID, req.Date, req.DarwinRID)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, train)
	}
}

func handleAttachTrustId(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.AttachTrustId(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "trust_id")); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

func handleTerminate(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Terminate(r.Context(), chi.URLParam(r, "id")); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

func handleCancel(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

func handleTrustMovement(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd trust.Update
		if err := railhttp.DecodeJSON(r, &upd); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		mvt, err := engine.ApplyTrustMovement(r.Context(), chi.URLParam(r, "id"), upd)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, mvt)
	}
}

func handleDarwinMovement(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd darwin.Update
		if err := railhttp.DecodeJSON(r, &upd); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		mvt, err := engine.ApplyDarwinMovement(r.Context(), chi.URLParam(r, "id"), upd)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, mvt)
	}
}

func handleRemoveDarwinActual(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var key PlannedKey
		if err := railhttp.DecodeJSON(r, &key); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		if err := engine.RemoveDarwinActual(r.Context(), chi.URLParam(r, "id"), key); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

func handleByTrustId(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := model.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		train, err := engine.GetByTrustId(r.Context(), chi.URLParam(r, "tid"), date)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, train)
	}
}

func handleByDarwinRid(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		train, err := engine.GetByDarwinRid(r.Context(), chi.URLParam(r, "rid"))
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, train)
	}
}

type detailsResponse struct {
	Train     model.Train      `json:"train"`
	Movements []model.TrainMvt `json:"movements"`
}

func handleGetDetails(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		train, mvts, err := engine.GetDetails(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, detailsResponse{Train: train, Movements: mvts})
	}
}

func handleMovementsThrough(engine *Engine) http.HandlerFunc {
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
		matches, err := engine.MovementsThrough(r.Context(), chi.URLParam(r, "tiploc"), date, ts, dur)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, matches)
	}
}
