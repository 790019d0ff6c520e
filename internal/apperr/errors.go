// Package apperr holds the error taxonomy shared by the API clients, the
// reconciliation engine and the HTTP layer.
package apperr

import "fmt"

// AuthError is returned when upstream credentials are rejected or a cached
// session has expired.
type AuthError struct {
	System  string // "shiprocket", "shopify"
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s authentication failed: %s", e.System, e.Message)
	}
	return fmt.Sprintf("%s authentication failed", e.System)
}

// RateLimitError is returned on an upstream 429.
type RateLimitError struct {
	System string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded", e.System)
}

// UpstreamError is returned on a 5xx response or a network-level failure.
// StatusCode is 0 when no response was received at all, so callers can tell
// network failures from HTTP failures.
type UpstreamError struct {
	System     string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s unreachable: %s", e.System, e.Message)
	}
	return fmt.Sprintf("%s returned %d: %s", e.System, e.StatusCode, e.Message)
}

// NotFoundError is returned when a resource is absent. Callers must not treat
// it as transient.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ProtocolError is returned when an upstream response matches none of the
// known envelope shapes.
type ProtocolError struct {
	System  string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s response not understood: %s", e.System, e.Message)
}

// ValidationError is returned on malformed batch input, before any write.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// PermissionError is returned on a cross-tenant access attempt, before any
// write.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "permission denied"
}

// StorageError wraps a database failure. Treated as non-retryable within the
// same sync pass.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
