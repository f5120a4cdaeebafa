package grant

import (
	"context"
	"fmt"
	"time"
)

const GrantTypeClientCredentials = "client_credentials"

func init() {
	Register(GrantTypeClientCredentials, newClientCredentialsGrant)
}

// clientCredentialsGrant implements RFC 6749's client-credentials grant: a
// service authenticates with its own client_id/client_secret and receives a
// token scoped to the access it requested, if the directory says it's
// authorized for that scope.
type clientCredentialsGrant struct {
	base
}

func newClientCredentialsGrant(req *Request, deps Deps) Grant {
	return &clientCredentialsGrant{base: base{req: req, deps: deps}}
}

func (g *clientCredentialsGrant) GenerateToken(ctx context.Context) (string, time.Time, error) {
	if g.req.GrantType != GrantTypeClientCredentials {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidGrantType, g.req.GrantType)
	}

	s, err := g.requestedScope()
	if err != nil {
		return "", time.Time{}, err
	}

	if err := validateScope(ctx, g.deps, g.req.Client, s); err != nil {
		return "", time.Time{}, err
	}

	client := tokenClientOf(g.req.Client)
	signed, err := g.deps.Codec.Encode(ctx, client, s.String(), GrantTypeClientCredentials, "")
	if err != nil {
		return "", time.Time{}, err
	}

	claims, err := g.deps.Codec.Decode(ctx, signed)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt, nil
}

func (g *clientCredentialsGrant) VerifyAccess(ctx context.Context, signedToken string) error {
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

	client, err := directoryClientFor(ctx, g.deps, claims.Client.ID)
	if err != nil {
		return err
	}

	if err := g.verifyAccessService(ctx, client, g.req.ClientID, access); err != nil {
		return err
	}
	return g.verifyAccessHostedResource(ctx, client, access)
}
