package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoTenantScope occurs when a tenant-scoped query is attempted
	// without an established tenant context.
	ErrNoTenantScope = errors.New("tenant scope not established")
	// ErrTenantIsolation occurs when the storage layer rejects a statement
	// under row-level security. It is a security event, never silently
	// corrected.
	ErrTenantIsolation = errors.New("tenant isolation violation")
)
