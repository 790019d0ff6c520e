package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bfast/internal/apperr"
	"bfast/internal/service"
)

// Tracker is the engine surface the public tracking endpoint consumes.
type Tracker interface {
	Track(ctx context.Context, awb string) (*service.TrackLookup, error)
}

// TrackHandler serves the unauthenticated track-my-shipment lookup. Live
// courier data when available, last stored state otherwise; the response
// carries which source answered.
func TrackHandler(tracker Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		awb := chi.URLParam(r, "awb")
		if awb == "" {
			http.Error(w, "awb required", http.StatusBadRequest)
			return
		}

		lookup, err := tracker.Track(r.Context(), awb)
		if err != nil {
			var notFound *apperr.NotFoundError
			if errors.As(err, &notFound) {
				http.Error(w, "shipment not found", http.StatusNotFound)
				return
			}
			http.Error(w, "tracking unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lookup); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}
