package guard

import "net/http"

// ReasonCode is a stable, enumerable denial reason. Codes are part of the
// API surface: clients may branch on them, so existing values never change.
type ReasonCode string

const (
	ReasonUnauthenticated  ReasonCode = "unauthenticated"
	ReasonAccountInactive  ReasonCode = "account_inactive"
	ReasonStaleCredential  ReasonCode = "stale_credential"
	ReasonPermissionDenied ReasonCode = "permission_denied"
	ReasonRoleDenied       ReasonCode = "role_denied"
	ReasonResourceDenied   ReasonCode = "resource_denied"
)

// Denial is the structured rejection produced by a guard. It is data, not
// control flow: guards return it up the stack instead of panicking, so an
// unrelated recover can never turn a denial into an allow.
type Denial struct {
	Code   ReasonCode
	Detail string
}

// Status maps the reason to an HTTP status. Credential problems are 401 and
// force re-authentication; everything after authentication is 403.
func (d Denial) Status() int {
	switch d.Code {
	case ReasonUnauthenticated, ReasonStaleCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Title returns the problem title for the status.
func (d Denial) Title() string {
	if d.Status() == http.StatusUnauthorized {
		return "Unauthorized"
	}
	return "Forbidden"
}
