// Package grant implements the grant registry and the two supported OAuth2
// grant types: client-credentials (RFC 6749) and a JWT-bearer delegate
// grant (RFC 7523 shaped).
//
// The registry is a package-level map populated at init() time, not a class
// hierarchy: new grant types are added by registering a Constructor, mirroring
// the original's BaseGrant.register() classmethod and this corpus's own
// preference for registries-as-data over type hierarchies.
package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/openpermissions/authd/internal/directory"
	"github.com/openpermissions/authd/internal/scope"
	"github.com/openpermissions/authd/internal/token"
)

// Grant issues and verifies tokens for one grant type.
type Grant interface {
	// GenerateToken validates the request and the requested scope, and
	// issues a new signed token.
	GenerateToken(ctx context.Context) (signedToken string, expiresAt time.Time, err error)

	// VerifyAccess checks that signedToken grants the request's
	// requested_access to its target resource.
	VerifyAccess(ctx context.Context, signedToken string) error
}

// Deps are the collaborators every grant needs.
type Deps struct {
	Directory    directory.Directory
	Codec        *token.Codec
	DefaultScope string
}

// Constructor builds a Grant for one request.
type Constructor func(req *Request, deps Deps) Grant

var registry = map[string]Constructor{}

// Register adds a grant type to the registry. Called from each grant
// implementation's init().
func Register(grantType string, ctor Constructor) {
	registry[grantType] = ctor
}

// Get builds the Grant registered for grantType, per request and deps.
func Get(grantType string, req *Request, deps Deps) (Grant, error) {
	ctor, ok := registry[grantType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGrantType, grantType)
	}
	return ctor(req, deps), nil
}

// GetForToken decodes signedToken to discover its grant type and builds the
// matching Grant. Used by /verify, which has no grant_type form parameter
// of its own — the grant type travels inside the token being verified.
func GetForToken(ctx context.Context, signedToken string, req *Request, deps Deps) (Grant, *token.Claims, error) {
	claims, err := deps.Codec.Decode(ctx, signedToken)
	if err != nil {
		return nil, nil, err
	}
	g, err := Get(claims.GrantType, req, deps)
	if err != nil {
		return nil, nil, err
	}
	return g, claims, nil
}

// base implements the verification logic shared by every grant type:
// requested scope/access parsing, the hosted-resource split, and the two
// directory-backed authorization checks. Grant-type-specific token
// generation and scope-matching rules live in the concrete types that embed
// base.
type base struct {
	req  *Request
	deps Deps
}

func (b *base) requestedScope() (*scope.Scope, error) {
	raw := b.req.Scope
	if raw == "" {
		raw = b.deps.DefaultScope
	}
	s, err := scope.Parse(raw)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *base) requestedAccess() (string, error) {
	if b.req.RequestedAccess == "" {
		return "", fmt.Errorf("%w: missing requested_access argument", ErrBadRequest)
	}
	return b.req.RequestedAccess, nil
}

// hostedResource returns the resource_id form parameter, unless it's the
// same as the calling client's own ID — in which case the resource being
// checked is the client itself, not something it hosts.
func (b *base) hostedResource() string {
	if b.req.ResourceID == "" || b.req.ResourceID == b.req.ClientID {
		return ""
	}
	return b.req.ResourceID
}

// verifyScope checks that the token's scope grants requestedAccess to
// either the hosted resource (if resource_id was given) or to the calling
// client itself (by ID or by its registered URL).
func (b *base) verifyScope(s *scope.Scope, access string) error {
	var within bool
	if hosted := b.hostedResource(); hosted != "" {
		within = s.WithinScope(access, hosted)
	} else {
		within = s.WithinScope(access, b.req.ClientID)
		if !within && b.req.Client != nil && b.req.Client.Service != nil && b.req.Client.Service.URL != "" {
			within = s.WithinScope(access, b.req.Client.Service.URL)
		}
	}

	if !within {
		target := b.req.ClientID
		if hosted := b.hostedResource(); hosted != "" {
			target = hosted
		}
		return fmt.Errorf("%w: %q access to %q not permitted by token", ErrUnauthorized, access, target)
	}
	return nil
}

// verifyAccessHostedResource checks, when a resource_id names a resource
// hosted on another service, that the token's client is that resource's
// hosting service and that client is authorized for the requested access
// to it. A no-op when no hosted resource was named.
func (b *base) verifyAccessHostedResource(ctx context.Context, client *directory.Client, access string) error {
	hosted := b.hostedResource()
	if hosted == "" {
		return nil
	}

	repo, err := b.deps.Directory.GetRepository(ctx, hosted)
	if err != nil {
		return fmt.Errorf("%w: unknown repository %q", ErrUnauthorized, hosted)
	}

	if repo.ServiceID != b.req.ClientID {
		return fmt.Errorf("%w: %q does not host repository %q", ErrUnauthorized, b.req.ClientID, hosted)
	}

	ok, err := authorize(ctx, b.deps.Directory, client, access, repo)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q does not have %q access to repository %q", ErrUnauthorized, client.ID, access, hosted)
	}
	return nil
}

// verifyAccessService checks that client is authorized for access to the
// service named by the token's (or request's) client ID.
func (b *base) verifyAccessService(ctx context.Context, client *directory.Client, serviceID, access string) error {
	svc, err := b.deps.Directory.GetService(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("%w: unknown service %q", ErrUnauthorized, serviceID)
	}
	ok, err := authorize(ctx, b.deps.Directory, client, access, svc)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q does not have %q access to service %q", ErrUnauthorized, client.ID, access, serviceID)
	}
	return nil
}

// authorize consults dir's policy-aware Authorize method when it implements
// directory.Authorizer (see PolicyDirectory), falling back to the target's
// static grant list otherwise.
func authorize(ctx context.Context, dir directory.Directory, client *directory.Client, access string, target directory.Resource) (bool, error) {
	if az, ok := dir.(directory.Authorizer); ok {
		return az.Authorize(ctx, client, access, target)
	}
	return client.Authorized(access, target), nil
}
