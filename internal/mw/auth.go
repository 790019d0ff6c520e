package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"bfast/internal/model"
	"bfast/internal/service"
)

type contextKey string

const PrincipalCtxKey contextKey = "principal"

// AuthMiddleware validates the bearer token and puts the caller's
// {user_id, role, client_id} into the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid claims", http.StatusInternalServerError)
				return
			}

			userID, _ := claims["user_id"].(string)
			role, _ := claims["role"].(string)
			clientID, _ := claims["client_id"].(string)
			if userID == "" || role == "" {
				http.Error(w, "incomplete token claims", http.StatusUnauthorized)
				return
			}

			principal := service.Principal{UserID: userID, Role: role, ClientID: clientID}
			ctx := context.WithValue(r.Context(), PrincipalCtxKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not in the allow list.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allowed[principal.Role] {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(ctx context.Context) (service.Principal, bool) {
	principal, ok := ctx.Value(PrincipalCtxKey).(service.Principal)
	return principal, ok
}

// ScopeClientID resolves which tenant a read should be filtered by: the
// caller's own tenant for scoped roles, the requested one (possibly all)
// for cross-tenant roles.
func ScopeClientID(p service.Principal, requested string) string {
	if model.CrossTenant(p.Role) {
		return requested
	}
	return p.ClientID
}
