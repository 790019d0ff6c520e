package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"bfast/internal/apperr"
	"bfast/internal/service"
)

// SyncNowHandler triggers one sync pass, for one tenant when ?client_id= is
// given, otherwise for all. The response is a summary, never raw exception
// text.
func SyncNowHandler(engine *service.ReconcileEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")

		var (
			summary *service.SyncSummary
			err     error
		)
		if clientID != "" {
			summary, err = engine.SyncOne(r.Context(), clientID)
		} else {
			summary, err = engine.SyncAll(r.Context())
		}
		if err != nil {
			var notFound *apperr.NotFoundError
			if errors.As(err, &notFound) {
				http.Error(w, "client not found", http.StatusNotFound)
				return
			}
			http.Error(w, "sync failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}
