package grant

import "github.com/openpermissions/authd/internal/directory"

// Request is the subset of an incoming /token or /verify request the grant
// implementations need. The HTTP layer is responsible for populating it
// from form parameters and the Basic-auth-authenticated client.
type Request struct {
	// GrantType is the grant_type form parameter (for /token requests).
	GrantType string

	// ClientID is the authenticated client's ID (from Basic auth).
	ClientID string

	// Client is the authenticated client, resolved from the directory.
	Client *directory.Client

	// Scope is the raw scope form parameter, if provided.
	Scope string

	// RequestedAccess is the requested_access form parameter (for /verify).
	RequestedAccess string

	// ResourceID is the resource_id form parameter, if the resource being
	// verified is hosted by a different service than the caller.
	ResourceID string

	// Assertion is the assertion form parameter (for the JWT-bearer
	// delegate grant): a signed token authorizing delegation.
	Assertion string
}
