package refresolver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railerr"
	"github.com/trainsplorer/railcore/internal/railhttp"
)

// Routes mounts the reference resolver's HTTP API onto r.
func Routes(r chi.Router, store *Store) {
	r.Post("/reference/entries", handleLoadEntries(store))
	r.Post("/reference/corpus", handleLoadCorpus(store))
	r.Get("/reference/stanox/{stanox}", handleStanox(store))
	r.Get("/reference/tiploc/{tiploc}", handleTiploc(store))
	r.Get("/reference/crs/{crs}", handleCRS(store))
	r.Get("/reference/suggest/{prefix}", handleSuggest(store))
}

func handleLoadEntries(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entries []model.ReferenceEntry
		if err := railhttp.DecodeJSON(r, &entries); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		if err := store.LoadEntries(r.Context(), entries); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

// handleLoadCorpus accepts the CORPUS document verbatim, so the ingest
// adapter does not have to know the conversion rules.
func handleLoadCorpus(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "read request body: %v", err))
			return
		}
		doc, err := DecodeCorpus(body)
		if err != nil {
			railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "%v", err))
			return
		}
		if err := store.LoadEntries(r.Context(), FromCorpus(doc.Data)); err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, nil)
	}
}

func handleStanox(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tiplocs := store.StanoxToTiplocs(chi.URLParam(r, "stanox"))
		railhttp.WriteJSON(w, http.StatusOK, tiplocs)
	}
}

type tiplocResponse struct {
	TIPLOC string `json:"tiploc"`
	CRS    string `json:"crs,omitempty"`
	Name   string `json:"name,omitempty"`
}

func handleTiploc(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tiploc := chi.URLParam(r, "tiploc")
		crs, name, err := store.TiplocName(tiploc)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, tiplocResponse{TIPLOC: tiploc, CRS: crs, Name: name})
	}
}

type crsResponse struct {
	CRS  string `json:"crs"`
	Name string `json:"name"`
}

func handleCRS(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		crs := chi.URLParam(r, "crs")
		name, err := store.CRSName(crs)
		if err != nil {
			railhttp.WriteError(w, err)
			return
		}
		railhttp.WriteJSON(w, http.StatusOK, crsResponse{CRS: crs, Name: name})
	}
}

func handleSuggest(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				railhttp.WriteError(w, railerr.Newf(railerr.BadRequest, "invalid ?limit=%s", raw))
				return
			}
			limit = n
		}
		suggestions := store.NameSuggestions(chi.URLParam(r, "prefix"), limit)
		railhttp.WriteJSON(w, http.StatusOK, suggestions)
	}
}
