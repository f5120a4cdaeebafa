package probe

import (
	"context"
	"errors"
	"testing"
)

func TestNoOpObserver_DoesNotPanic(t *testing.T) {
	var o Observer = NoOpObserver{}

	_, issuance := o.IssuanceStarted(context.Background(), "client_credentials", "acme-catalog", "write[acme-search]")
	issuance.ScopeResolved("write[acme-search]")
	issuance.ScopeRejected(errors.New("boom"))
	issuance.TokenSigned("key-1")
	issuance.IssuanceFailed(errors.New("boom"))
	issuance.End()

	_, verification := o.VerificationStarted(context.Background(), "acme-catalog", "w")
	verification.TokenDecoded("client_credentials")
	verification.AccessGranted()
	verification.AccessDenied(errors.New("boom"))
	verification.VerificationFailed(errors.New("boom"))
	verification.End()
}

func TestCompositeObserver_FansOutIssuance(t *testing.T) {
	first := NewFakeObserver(t)
	second := NewFakeObserver(t)
	composite := NewCompositeObserver(first, second)

	_, probe := composite.IssuanceStarted(context.Background(), "client_credentials", "acme-catalog", "write[acme-search]")
	probe.ScopeResolved("write[acme-search]")
	probe.TokenSigned("key-1")
	probe.End()

	first.AssertSingleProbe("IssuanceStarted").AssertProbeSequence("ScopeResolved", "TokenSigned", "End")
	second.AssertSingleProbe("IssuanceStarted").AssertProbeSequence("ScopeResolved", "TokenSigned", "End")
}

func TestCompositeObserver_FansOutVerification(t *testing.T) {
	first := NewFakeObserver(t)
	second := NewFakeObserver(t)
	composite := NewCompositeObserver(first, second)

	_, probe := composite.VerificationStarted(context.Background(), "acme-catalog", "w")
	probe.TokenDecoded("client_credentials")
	probe.AccessGranted()
	probe.End()

	first.AssertSingleProbe("VerificationStarted").AssertProbeSequence("TokenDecoded", "AccessGranted", "End")
	second.AssertSingleProbe("VerificationStarted").AssertProbeSequence("TokenDecoded", "AccessGranted", "End")
}

func TestCompositeObserver_EmptyFanOut(t *testing.T) {
	composite := NewCompositeObserver()

	_, probe := composite.IssuanceStarted(context.Background(), "client_credentials", "acme-catalog", "")
	// Should be safe to call every method with zero delegates.
	probe.ScopeResolved("")
	probe.End()
}
