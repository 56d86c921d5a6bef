package schedulestore

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trainsplorer/railcore/internal/cif"
	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
	"github.com/trainsplorer/railcore/internal/railhttp"
)

// Routes mounts the schedule store's HTTP API onto r.
func Routes(r chi.Router, store *Store) {
	r.Post("/schedules", handleUpsert(store))
	r.Delete("/schedules/{uid}/{start_date}/{stp}/{source}", handleDelete(store))
	r.Get("/schedule/{version_id}", handleGetDetails(store))
	r.Get("/schedules/by-uid/{uid}", handleFindByUid(store))
	r.Get("/schedules/by-uid-on-date/{uid}/{date}/{source}", handleFindAuthoritative(store))
	r.Get("/schedules/for-activation/{uid}/{start_date}/{stp}/{source}", handleFindForActivation(store))
	r.Get("/schedule-movements/through/{tiploc}/at/{ts}/within-secs/{dur}", handleMovementsThrough(store))
	r.Post("/ingest-files", handleRecordIngestFile(store))
}

type upsertRequest struct {
	Schedule cif.ScheduleRecord `json:"schedule"`
	Source   model.Source       `json:"source"`
}

type upsertResponse struct {
	VersionID string `json:"version_id,omitempty"`
	WasUpdate bool   `json:"was_update"`
	Deleted   bool   `json:"deleted,omitempty"`
}

func handleUpsert(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsertRequest
		if err := railhttp.DecodeJSON(r, &req); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		if req.Schedule.IsDelete() {
			key, err := req.Schedule.Key(req.Source)
			if err != nil {
				railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
				return
			}
			if err := store.Delete(r.Context(), key); err != nil {
				railhttp.WriteError(w, err)
				return
			}
			railhttp.WriteJSON(w, http.StatusOK, upsertResponse{Deleted: true})
			return
		}
		sched, mvts, err := cif.Build(req.Schedule, req.Source)
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		versionID, wasUpdate, err := store.Upsert(r.Context(), sched, mvts)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, upsertResponse{VersionID: versionID, WasUpdate: wasUpdate})
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parseKey(r)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		if err := store.Delete(r.Context(), key); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusNoContent, nil)
	}
}

func handleGetDetails(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sched, mvts, err := store.GetDetails(r.Context(), chi.URLParam(r, "version_id"))
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, detailsResponse{Schedule: sched, Movements: mvts})
	}
}

type detailsResponse struct {
	Schedule  model.Schedule      `json:"schedule"`
	Movements []model.ScheduleMvt `json:"movements"`
}

func handleFindByUid(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheds, err := store.FindByUid(r.Context(), chi.URLParam(r, "uid"))
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, scheds)
	}
}

func handleFindAuthoritative(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := model.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		source, err := model.ParseSource(chi.URLParam(r, "source"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		sched, err := store.FindAuthoritativeOnDate(r.Context(), chi.URLParam(r, "uid"), date, source)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, sched)
	}
}

func handleFindForActivation(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startDate, err := model.ParseDate(chi.URLParam(r, "start_date"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		stp, err := model.ParseSTPIndicator(chi.URLParam(r, "stp"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		source, err := model.ParseSource(chi.URLParam(r, "source"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		sched, err := store.FindForActivation(r.Context(), chi.URLParam(r, "uid"), stp, startDate, source)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, sched)
	}
}

func handleMovementsThrough(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := model.ParseHHMM(chi.URLParam(r, "ts"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		dateParam := r.URL.Query().Get("date")
		date, err := model.ParseDate(dateParam)
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "missing or invalid ?date="))
			return
		}
		dur, err := strconv.Atoi(chi.URLParam(r, "dur"))
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		matches, err := store.MovementsThrough(r.Context(), chi.URLParam(r, "tiploc"), date, ts, dur)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, matches)
	}
}

type ingestFileRequest struct {
	Stream   string `json:"stream"`
	Sequence int64  `json:"sequence"`
	Ts       string `json:"ts"`
}

func handleRecordIngestFile(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestFileRequest
		if err := railhttp.DecodeJSON(r, &req); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		if err := store.RecordIngestFile(r.Context(), req.Stream, req.Sequence, req.Ts); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

func parseKey(r *http.Request) (model.ScheduleKey, error) {
	startDate, err := model.ParseDate(chi.URLParam(r, "start_date"))
	if err != nil {
		return model.ScheduleKey{}, railerr.Newf(railerr.BadRequest, "%v", err)
	}
	stp, err := model.ParseSTPIndicator(chi.URLParam(r, "stp"))
	if err != nil {
		return model.ScheduleKey{}, railerr.Newf(railerr.BadRequest, "%v", err)
	}
	source, err := model.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		return model.ScheduleKey{}, railerr.Newf(railerr.BadRequest, "%v", err)
	}
	return model.ScheduleKey{UID: chi.URLParam(r, "uid"), StartDate: startDate, STPIndicator: stp, Source: source}, nil
}
