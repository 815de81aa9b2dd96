package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when a tenant cannot be found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrStore is returned when the tenant store is unreachable or fails.
	ErrStore = errors.New("tenant store failure")
)
