package model

import "time"

// Roles. Admin and Executive are cross-tenant; ClientAdmin is scoped to one
// tenant and may only read or mutate its own orders.
const (
	RoleAdmin       = "ADMIN"
	RoleExecutive   = "EXECUTIVE"
	RoleClientAdmin = "CLIENT_ADMIN"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	Role         string    `json:"role"`
	ClientID     string    `json:"client_id,omitempty"` // empty for cross-tenant roles
	CreatedAt    time.Time `json:"created_at"`
}

// CrossTenant reports whether the role may touch any tenant's orders.
func CrossTenant(role string) bool {
	return role == RoleAdmin || role == RoleExecutive
}
