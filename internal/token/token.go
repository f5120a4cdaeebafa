// Package token implements the RS256 JWT codec: encoding a client's granted
// scope into a signed bearer token, and decoding/verifying one presented
// back to the server.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/openpermissions/authd/internal/clock"
	"github.com/openpermissions/authd/internal/keys"
)

// ErrTokenInvalid is returned when a presented token fails signature
// verification, has expired, or is otherwise malformed.
var ErrTokenInvalid = errors.New("token_invalid")

// Client describes the authenticated client a token is issued to or was
// issued for, mirroring directory.Client/Service without importing the
// directory package (this codec has no business depending on how clients
// are resolved).
type Client struct {
	ID             string
	ServiceType    string
	OrganisationID string
}

// Claims is the decoded payload of a token this server issued.
type Claims struct {
	Issuer    string
	Audience  string
	Subject   string
	ExpiresAt time.Time
	Client    Client
	Scope     string
	GrantType string
	Delegate  string // delegate client ID, present only for delegate-grant tokens
}

const (
	claimClient    = "client"
	claimScope     = "scope"
	claimGrantType = "grant_type"
	claimDelegate  = "delegate"
)

// BaseURI derives the issuer/audience base URI from the configured
// authorization service URL: scheme+host, with any trailing slash on the
// path stripped. This mirrors the original service's base_uri(), which
// strips the path down to its netloc plus a path with no trailing slash.
func BaseURI(urlAuth string) (string, error) {
	u, err := url.Parse(urlAuth)
	if err != nil {
		return "", fmt.Errorf("invalid url_auth %q: %w", urlAuth, err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	return u.Scheme + "://" + u.Host + path, nil
}

// Codec encodes and decodes tokens using a keys.Signer for signing and
// verification key material.
type Codec struct {
	signer  keys.Signer
	baseURI string
	expiry  time.Duration
	clk     clock.Clock
}

// NewCodec builds a Codec. expiry is the lifetime given to newly issued
// tokens (spec.md §6 token_expiry).
func NewCodec(signer keys.Signer, urlAuth string, expiry time.Duration) (*Codec, error) {
	baseURI, err := BaseURI(urlAuth)
	if err != nil {
		return nil, err
	}
	return &Codec{signer: signer, baseURI: baseURI, expiry: expiry, clk: clock.NewSystemClock()}, nil
}

// SetClock overrides the clock used to stamp issued-at/expiry on new tokens.
// Tests use this to make token timestamps deterministic; production callers
// never need it.
func (c *Codec) SetClock(clk clock.Clock) {
	c.clk = clk
}

// Encode signs a new token for client, granting scope under grantType. For
// delegate-grant tokens, delegateID names the delegate client the token was
// issued on behalf of.
func (c *Codec) Encode(ctx context.Context, client Client, scopeStr, grantType, delegateID string) (string, error) {
	now := c.clk.Now()
	expiresAt := now.Add(c.expiry)

	tok := jwt.New()
	if err := tok.Set(jwt.IssuerKey, c.baseURI); err != nil {
		return "", fmt.Errorf("failed to set issuer: %w", err)
	}
	if err := tok.Set(jwt.AudienceKey, []string{c.baseURI}); err != nil {
		return "", fmt.Errorf("failed to set audience: %w", err)
	}
	if err := tok.Set(jwt.SubjectKey, client.ID); err != nil {
		return "", fmt.Errorf("failed to set subject: %w", err)
	}
	if err := tok.Set(jwt.IssuedAtKey, now.Unix()); err != nil {
		return "", fmt.Errorf("failed to set issued at: %w", err)
	}
	if err := tok.Set(jwt.ExpirationKey, expiresAt.Unix()); err != nil {
		return "", fmt.Errorf("failed to set expiration: %w", err)
	}
	if err := tok.Set(claimClient, map[string]any{
		"id":              client.ID,
		"service_type":    client.ServiceType,
		"organisation_id": client.OrganisationID,
	}); err != nil {
		return "", fmt.Errorf("failed to set client claim: %w", err)
	}
	if err := tok.Set(claimScope, scopeStr); err != nil {
		return "", fmt.Errorf("failed to set scope: %w", err)
	}
	if err := tok.Set(claimGrantType, grantType); err != nil {
		return "", fmt.Errorf("failed to set grant type: %w", err)
	}
	if delegateID != "" {
		if err := tok.Set(claimDelegate, delegateID); err != nil {
			return "", fmt.Errorf("failed to set delegate: %w", err)
		}
	}

	signAlg, ok := jwa.LookupSignatureAlgorithm(c.signer.Algorithm())
	if !ok {
		return "", fmt.Errorf("unsupported signature algorithm: %s", c.signer.Algorithm())
	}

	signer, keyID, err := c.signer.CryptoSigner(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get signer: %w", err)
	}

	headers := jws.NewHeaders()
	if keyID != "" {
		if err := headers.Set(jws.KeyIDKey, keyID); err != nil {
			return "", fmt.Errorf("failed to set key ID header: %w", err)
		}
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(signAlg, signer, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// Decode verifies signedToken's signature against the current public key
// and returns its claims. Returns ErrTokenInvalid (wrapped with the
// underlying cause) on any verification or parsing failure, expiry
// included.
func (c *Codec) Decode(ctx context.Context, signedToken string) (*Claims, error) {
	pub, err := c.signer.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load verification key: %v", ErrTokenInvalid, err)
	}

	alg, ok := jwa.LookupSignatureAlgorithm("RS256")
	if !ok {
		return nil, fmt.Errorf("%w: RS256 not available", ErrTokenInvalid)
	}

	tok, err := jwt.Parse([]byte(signedToken),
		jwt.WithKey(alg, pub),
		jwt.WithValidate(true),
		jwt.WithIssuer(c.baseURI),
		jwt.WithAudience(c.baseURI),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims := &Claims{}
	if iss, ok := tok.Issuer(); ok {
		claims.Issuer = iss
	}
	if sub, ok := tok.Subject(); ok {
		claims.Subject = sub
	}
	if exp, ok := tok.Expiration(); ok {
		claims.ExpiresAt = exp
	}
	if aud, ok := tok.Audience(); ok && len(aud) > 0 {
		claims.Audience = aud[0]
	}

	var scope string
	if err := tok.Get(claimScope, &scope); err == nil {
		claims.Scope = scope
	}
	var grantType string
	if err := tok.Get(claimGrantType, &grantType); err == nil {
		claims.GrantType = grantType
	}
	var delegate string
	if err := tok.Get(claimDelegate, &delegate); err == nil {
		claims.Delegate = delegate
	}
	var client map[string]any
	if err := tok.Get(claimClient, &client); err == nil {
		claims.Client.ID, _ = client["id"].(string)
		claims.Client.ServiceType, _ = client["service_type"].(string)
		claims.Client.OrganisationID, _ = client["organisation_id"].(string)
	}

	return claims, nil
}

// NewJTI returns a fresh, random token identifier. Unused by the token
// payload itself (spec.md's claim set has no jti), but exposed for callers
// that want to correlate issuance log lines with a generated token.
func NewJTI() string {
	return uuid.NewString()
}
