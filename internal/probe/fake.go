package probe

import (
	"context"
	"testing"
)

// FakeObserver is a test double that implements Observer and records every
// probe it creates, for assertions in handler and grant tests.
type FakeObserver struct {
	t *testing.T

	Probes []*FakeProbe
}

// NewFakeObserver creates a fake observer for testing.
func NewFakeObserver(t *testing.T) *FakeObserver {
	return &FakeObserver{t: t}
}

func (o *FakeObserver) IssuanceStarted(ctx context.Context, grantType, clientID, scope string) (context.Context, IssuanceProbe) {
	p := &FakeProbe{
		t:           o.t,
		StartMethod: "IssuanceStarted",
		StartArgs: map[string]any{
			"grantType": grantType,
			"clientID":  clientID,
			"scope":     scope,
		},
	}
	o.Probes = append(o.Probes, p)
	return ctx, p
}

func (o *FakeObserver) VerificationStarted(ctx context.Context, clientID, requestedAccess string) (context.Context, VerificationProbe) {
	p := &FakeProbe{
		t:           o.t,
		StartMethod: "VerificationStarted",
		StartArgs: map[string]any{
			"clientID":        clientID,
			"requestedAccess": requestedAccess,
		},
	}
	o.Probes = append(o.Probes, p)
	return ctx, p
}

// AssertProbeCount verifies the expected number of probes were created.
func (o *FakeObserver) AssertProbeCount(expected int) {
	o.t.Helper()
	if len(o.Probes) != expected {
		o.t.Errorf("expected %d probe(s), got %d", expected, len(o.Probes))
	}
}

// AssertSingleProbe asserts exactly one probe was created with startMethod
// and returns it for sequence assertions.
func (o *FakeObserver) AssertSingleProbe(startMethod string) *FakeProbe {
	o.t.Helper()
	o.AssertProbeCount(1)
	if len(o.Probes) == 0 {
		return nil
	}
	p := o.Probes[0]
	if p.StartMethod != startMethod {
		o.t.Errorf("expected probe started with %s, got %s", startMethod, p.StartMethod)
	}
	return p
}

// FakeProbe implements both IssuanceProbe and VerificationProbe and records
// every call made to it.
type FakeProbe struct {
	t *testing.T

	StartMethod string
	StartArgs   map[string]any

	calls []string
}

func (p *FakeProbe) recordCall(method string) {
	p.calls = append(p.calls, method)
}

func (p *FakeProbe) ScopeResolved(scope string)    { p.recordCall("ScopeResolved") }
func (p *FakeProbe) ScopeRejected(err error)       { p.recordCall("ScopeRejected") }
func (p *FakeProbe) TokenSigned(keyID string)      { p.recordCall("TokenSigned") }
func (p *FakeProbe) IssuanceFailed(err error)      { p.recordCall("IssuanceFailed") }
func (p *FakeProbe) TokenDecoded(grantType string) { p.recordCall("TokenDecoded") }
func (p *FakeProbe) AccessGranted()                { p.recordCall("AccessGranted") }
func (p *FakeProbe) AccessDenied(err error)        { p.recordCall("AccessDenied") }
func (p *FakeProbe) VerificationFailed(err error)  { p.recordCall("VerificationFailed") }
func (p *FakeProbe) End()                          { p.recordCall("End") }

// AssertProbeSequence verifies the exact sequence of method calls made to
// this probe.
func (p *FakeProbe) AssertProbeSequence(expected ...string) {
	p.t.Helper()
	if len(p.calls) != len(expected) {
		p.t.Errorf("expected %d probe calls, got %d: %v", len(expected), len(p.calls), p.calls)
		return
	}
	for i, exp := range expected {
		if p.calls[i] != exp {
			p.t.Errorf("probe call %d: expected %s, got %s", i, exp, p.calls[i])
		}
	}
}
