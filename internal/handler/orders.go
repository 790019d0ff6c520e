package handler

import (
	"encoding/json"
	"net/http"

	"bfast/internal/mw"
	"bfast/internal/service"
)

// ListOrdersHandler returns orders scoped to the caller's tenant. Cross-tenant
// roles may pass ?client_id= to filter, or omit it to see everything.
func ListOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		clientID := mw.ScopeClientID(principal, r.URL.Query().Get("client_id"))

		orders, err := orderSvc.List(r.Context(), clientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

// ListPendingOrdersHandler returns Pending orders with the same scoping rules.
func ListPendingOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := mw.PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		clientID := mw.ScopeClientID(principal, r.URL.Query().Get("client_id"))

		orders, err := orderSvc.ListPending(r.Context(), clientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}
