package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"bfast/internal/apperr"
	"bfast/internal/mw"
	"bfast/internal/service"
)

type assignAWBRequest struct {
	Assignments []service.AWBAssignment `json:"assignments"`

	// Parallel-array shape kept for bulk CSV callers; must pair 1:1.
	OrderIDs []string `json:"order_ids"`
	AWBs     []string `json:"awbs"`
}

func (req assignAWBRequest) pairs() ([]service.AWBAssignment, error) {
	if len(req.Assignments) > 0 {
		return req.Assignments, nil
	}
	if len(req.OrderIDs) != len(req.AWBs) {
		return nil, &apperr.ValidationError{Message: "order_ids and awbs must pair 1:1"}
	}

	assignments := make([]service.AWBAssignment, len(req.OrderIDs))
	for i := range req.OrderIDs {
		assignments[i] = service.AWBAssignment{OrderID: req.OrderIDs[i], AWB: req.AWBs[i]}
	}
	return assignments, nil
}

// AssignAWBHandler applies a batch of {order_id, awb} assignments.
func AssignAWBHandler(batchSvc *service.BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req assignAWBRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		assignments, err := req.pairs()
		if err != nil {
			writeBatchError(w, err)
			return
		}

		result, err := batchSvc.AssignAWB(r.Context(), principal, assignments)
		if err != nil {
			writeBatchError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

// BulkUpdateHandler applies a batch of partial-field order updates.
func BulkUpdateHandler(batchSvc *service.BatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var entries []service.BulkUpdateEntry
		if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		result, err := batchSvc.BulkUpdate(r.Context(), principal, entries)
		if err != nil {
			writeBatchError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

func writeBatchError(w http.ResponseWriter, err error) {
	var (
		validationErr *apperr.ValidationError
		permissionErr *apperr.PermissionError
	)
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &permissionErr):
		http.Error(w, permissionErr.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
