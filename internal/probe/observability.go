// Package probe defines request-scoped observability hooks for token
// issuance and verification, following the pattern from
// https://martinfowler.com/articles/domain-oriented-observability.html#IncludingExecutionContext:
// an Observer captures execution context once per request and returns a
// scoped Probe so call sites don't thread a logger through every method.
package probe

import "context"

// IssuanceObserver creates a request-scoped probe for a /token call.
type IssuanceObserver interface {
	IssuanceStarted(ctx context.Context, grantType, clientID, scope string) (context.Context, IssuanceProbe)
}

// IssuanceProbe reports the stages of generating a token for one request.
type IssuanceProbe interface {
	ScopeResolved(scope string)
	ScopeRejected(err error)
	TokenSigned(keyID string)
	IssuanceFailed(err error)
	End()
}

// VerificationObserver creates a request-scoped probe for a /verify call.
type VerificationObserver interface {
	VerificationStarted(ctx context.Context, clientID, requestedAccess string) (context.Context, VerificationProbe)
}

// VerificationProbe reports the stages of verifying a token for one request.
type VerificationProbe interface {
	TokenDecoded(grantType string)
	AccessGranted()
	AccessDenied(err error)
	VerificationFailed(err error)
	End()
}

// Observer is the full set of hooks the HTTP handlers consult.
type Observer interface {
	IssuanceObserver
	VerificationObserver
}

// NoOpIssuanceProbe is an exported null object. Embedding it lets an
// Observer implementation skip methods it doesn't care about.
type NoOpIssuanceProbe struct{}

func (NoOpIssuanceProbe) ScopeResolved(scope string) {}
func (NoOpIssuanceProbe) ScopeRejected(err error)    {}
func (NoOpIssuanceProbe) TokenSigned(keyID string)   {}
func (NoOpIssuanceProbe) IssuanceFailed(err error)   {}
func (NoOpIssuanceProbe) End()                       {}

// NoOpVerificationProbe is an exported null object.
type NoOpVerificationProbe struct{}

func (NoOpVerificationProbe) TokenDecoded(grantType string)  {}
func (NoOpVerificationProbe) AccessGranted()                 {}
func (NoOpVerificationProbe) AccessDenied(err error)         {}
func (NoOpVerificationProbe) VerificationFailed(err error)   {}
func (NoOpVerificationProbe) End()                           {}

// NoOpObserver implements Observer with no-op behavior throughout.
type NoOpObserver struct{}

func (NoOpObserver) IssuanceStarted(ctx context.Context, grantType, clientID, scope string) (context.Context, IssuanceProbe) {
	return ctx, NoOpIssuanceProbe{}
}

func (NoOpObserver) VerificationStarted(ctx context.Context, clientID, requestedAccess string) (context.Context, VerificationProbe) {
	return ctx, NoOpVerificationProbe{}
}

// compositeObserver delegates to multiple observers in order, useful for
// combining logging with metrics or tracing.
type compositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that fans out to every observer
// given, in order.
func NewCompositeObserver(observers ...Observer) Observer {
	return &compositeObserver{observers: observers}
}

func (c *compositeObserver) IssuanceStarted(ctx context.Context, grantType, clientID, scope string) (context.Context, IssuanceProbe) {
	probes := make([]IssuanceProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.IssuanceStarted(ctx, grantType, clientID, scope)
	}
	return ctx, &compositeIssuanceProbe{probes: probes}
}

func (c *compositeObserver) VerificationStarted(ctx context.Context, clientID, requestedAccess string) (context.Context, VerificationProbe) {
	probes := make([]VerificationProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.VerificationStarted(ctx, clientID, requestedAccess)
	}
	return ctx, &compositeVerificationProbe{probes: probes}
}

type compositeIssuanceProbe struct{ probes []IssuanceProbe }

func (c *compositeIssuanceProbe) ScopeResolved(scope string) {
	for _, p := range c.probes {
		p.ScopeResolved(scope)
	}
}

func (c *compositeIssuanceProbe) ScopeRejected(err error) {
	for _, p := range c.probes {
		p.ScopeRejected(err)
	}
}

func (c *compositeIssuanceProbe) TokenSigned(keyID string) {
	for _, p := range c.probes {
		p.TokenSigned(keyID)
	}
}

func (c *compositeIssuanceProbe) IssuanceFailed(err error) {
	for _, p := range c.probes {
		p.IssuanceFailed(err)
	}
}

func (c *compositeIssuanceProbe) End() {
	for _, p := range c.probes {
		p.End()
	}
}

type compositeVerificationProbe struct{ probes []VerificationProbe }

func (c *compositeVerificationProbe) TokenDecoded(grantType string) {
	for _, p := range c.probes {
		p.TokenDecoded(grantType)
	}
}

func (c *compositeVerificationProbe) AccessGranted() {
	for _, p := range c.probes {
		p.AccessGranted()
	}
}

func (c *compositeVerificationProbe) AccessDenied(err error) {
	for _, p := range c.probes {
		p.AccessDenied(err)
	}
}

func (c *compositeVerificationProbe) VerificationFailed(err error) {
	for _, p := range c.probes {
		p.VerificationFailed(err)
	}
}

func (c *compositeVerificationProbe) End() {
	for _, p := range c.probes {
		p.End()
	}
}
