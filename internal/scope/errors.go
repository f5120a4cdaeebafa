package scope

import "errors"

// ErrInvalidScope indicates a scope string is malformed or names an unknown
// resource or location.
var ErrInvalidScope = errors.New("invalid_scope")

// ErrUnauthorized indicates the client is not authorized for the requested
// access to a resource named in the scope.
var ErrUnauthorized = errors.New("unauthorized")
