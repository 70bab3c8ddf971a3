package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rmoraes/coldtrace/internal/monitor/query"
)

// LatestQuerier answers latest-reading lookups for the HTTP surface.
type LatestQuerier interface {
	Latest(ctx context.Context, shipmentID int64) (query.Result, error)
	LatestAll(ctx context.Context) ([]query.Result, error)
}

// NewRouter builds the monitor's HTTP query surface.
func NewRouter(querier LatestQuerier) http.Handler {
	router := chi.NewRouter()

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/api/temperature", func(w http.ResponseWriter, r *http.Request) {
		results, err := querier.LatestAll(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	router.Get("/api/temperature/{shipmentID}", func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := strconv.ParseInt(chi.URLParam(r, "shipmentID"), 10, 64)
		if err != nil || shipmentID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid shipment id")
			return
		}
		result, err := querier.Latest(r.Context(), shipmentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		// No data yet is an expected steady state, answered with the marker
		// rather than an error status.
		writeJSON(w, http.StatusOK, result)
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
