package grant

import (
	"context"

	"github.com/openpermissions/authd/internal/directory"
	"github.com/openpermissions/authd/internal/scope"
	"github.com/openpermissions/authd/internal/token"
)

// validateScope checks that client is authorized, per the directory, for
// every resource and delegate named in s.
func validateScope(ctx context.Context, deps Deps, client *directory.Client, s *scope.Scope) error {
	return scope.Validate(ctx, deps.Directory, client, s)
}

// parseClaimScope parses the scope carried inside a decoded token. A
// malformed scope claim on an otherwise validly-signed token indicates the
// token itself is corrupt, so this surfaces as token_invalid rather than
// invalid_scope.
func parseClaimScope(raw string) (*scope.Scope, error) {
	s, err := scope.Parse(raw)
	if err != nil {
		return nil, &tokenInvalidWrap{err}
	}
	return s, nil
}

type tokenInvalidWrap struct{ err error }

func (e *tokenInvalidWrap) Error() string { return e.err.Error() }
func (e *tokenInvalidWrap) Unwrap() error { return token.ErrTokenInvalid }

// tokenClientOf adapts a directory.Client to the minimal token.Client shape
// the codec needs.
func tokenClientOf(c *directory.Client) token.Client {
	if c == nil || c.Service == nil {
		return token.Client{}
	}
	return token.Client{
		ID:             c.ID,
		ServiceType:    c.Service.Name,
		OrganisationID: c.Service.OrgID,
	}
}

// directoryClientFor resolves a *directory.Client for a service ID embedded
// in a decoded token's "client" claim, so verification can reuse
// directory.Client.Authorized.
func directoryClientFor(ctx context.Context, deps Deps, clientID string) (*directory.Client, error) {
	svc, err := deps.Directory.GetService(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &directory.Client{ID: clientID, Service: svc}, nil
}
