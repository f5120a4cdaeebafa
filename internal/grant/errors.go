package grant

import "errors"

// ErrInvalidGrantType indicates the request or token named a grant type
// with no registered implementation.
var ErrInvalidGrantType = errors.New("invalid_grant_type")

// ErrBadRequest indicates a required request parameter was missing or
// malformed (e.g. requested_access).
var ErrBadRequest = errors.New("bad_request")

// ErrUnauthorized indicates the client, or the token presented, is not
// authorized for the requested access.
var ErrUnauthorized = errors.New("unauthorized")
