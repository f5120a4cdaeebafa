package grant

import (
	"context"
	"fmt"
	"time"
)

const GrantTypeDelegate = "urn:ietf:params:oauth:grant-type:jwt-bearer"

func init() {
	Register(GrantTypeDelegate, newDelegateGrant)
}

// delegateGrant implements the JWT-bearer delegate grant (RFC 7523 shaped):
// a delegate service presents a prior token ("assertion") that delegated it
// write access to the calling service, and exchanges it for a token scoped
// to act on that service's behalf.
type delegateGrant struct {
	base
}

func newDelegateGrant(req *Request, deps Deps) Grant {
	return &delegateGrant{base: base{req: req, deps: deps}}
}

// validateDelegateScope checks that the assertion's scope is exactly a
// delegate clause naming the calling client (by ID or URL) and the
// requested scope, e.g. "delegate[client-id]:write[repo-1]".
func (g *delegateGrant) validateDelegateScope(assertionScope, requestedScope string) error {
	idScope := fmt.Sprintf("delegate[%s]:%s", g.req.ClientID, requestedScope)
	if assertionScope == idScope {
		return nil
	}
	if g.req.Client != nil && g.req.Client.Service != nil && g.req.Client.Service.URL != "" {
		urlScope := fmt.Sprintf("delegate[%s]:%s", g.req.Client.Service.URL, requestedScope)
		if assertionScope == urlScope {
			return nil
		}
	}
	return fmt.Errorf("%w: requested scope does not match token", ErrUnauthorized)
}

func (g *delegateGrant) GenerateToken(ctx context.Context) (string, time.Time, error) {
	if g.req.GrantType != GrantTypeDelegate {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidGrantType, g.req.GrantType)
	}
	if g.req.Assertion == "" {
		return "", time.Time{}, fmt.Errorf("%w: a JSON Web Token must be included as an assertion parameter", ErrBadRequest)
	}

	assertion, err := g.deps.Codec.Decode(ctx, g.req.Assertion)
	if err != nil {
		return "", time.Time{}, err
	}

	s, err := g.requestedScope()
	if err != nil {
		return "", time.Time{}, err
	}
	if err := g.validateDelegateScope(assertion.Scope, s.String()); err != nil {
		return "", time.Time{}, err
	}

	// The assertion's client is the one granting delegation; it must have
	// authorized this (write) access to the calling client's service.
	delegator, err := directoryClientFor(ctx, g.deps, assertion.Client.ID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: unknown client %q", ErrUnauthorized, assertion.Client.ID)
	}
	if g.req.Client == nil || g.req.Client.Service == nil {
		return "", time.Time{}, fmt.Errorf("%w: unknown service %q", ErrUnauthorized, g.req.ClientID)
	}
	allowed, err := authorize(ctx, g.deps.Directory, delegator, "w", g.req.Client.Service)
	if err != nil {
		return "", time.Time{}, err
	}
	if !allowed {
		return "", time.Time{}, fmt.Errorf("%w: client %q may not delegate to service %q", ErrUnauthorized, assertion.Client.ID, g.req.ClientID)
	}

	client := tokenClientOf(delegator)
	signed, err := g.deps.Codec.Encode(ctx, client, s.String(), GrantTypeDelegate, g.req.ClientID)
	if err != nil {
		return "", time.Time{}, err
	}

	claims, err := g.deps.Codec.Decode(ctx, signed)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt, nil
}

func (g *delegateGrant) VerifyAccess(ctx context.Context, signedToken string) error {
	claims, err := g.deps.Codec.Decode(ctx, signedToken)
	if err != nil {
		return err
	}

	s, err := parseClaimScope(claims.Scope)
	if err != nil {
		return err
	}

	access, err := g.requestedAccess()
	if err != nil {
		return err
	}
	if err := g.verifyScope(s, access); err != nil {
		return err
	}

	delegate, err := directoryClientFor(ctx, g.deps, claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: unknown delegate %q", ErrUnauthorized, claims.Subject)
	}
	client, err := directoryClientFor(ctx, g.deps, claims.Client.ID)
	if err != nil {
		return fmt.Errorf("%w: unknown client %q", ErrUnauthorized, claims.Client.ID)
	}

	if err := g.verifyAccessService(ctx, delegate, claims.Subject, access); err != nil {
		return err
	}
	if err := g.verifyAccessService(ctx, client, claims.Client.ID, access); err != nil {
		return err
	}
	return g.verifyAccessHostedResource(ctx, client, access)
}
