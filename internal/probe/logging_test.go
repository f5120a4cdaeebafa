package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

func TestLoggingObserver_IssuanceLifecycle(t *testing.T) {
	logger, buf := newTestLogger()
	observer := NewLoggingObserver(logger)

	_, probe := observer.IssuanceStarted(context.Background(), "client_credentials", "acme-catalog", "write[acme-search]")
	probe.ScopeResolved("write[acme-search]")
	probe.TokenSigned("key-1")
	probe.End()

	out := buf.String()
	for _, want := range []string{"starting token issuance", "scope resolved", "token signed", "token issuance completed", "acme-catalog", "client_credentials"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggingObserver_IssuanceFailure(t *testing.T) {
	logger, buf := newTestLogger()
	observer := NewLoggingObserver(logger)

	_, probe := observer.IssuanceStarted(context.Background(), "client_credentials", "acme-catalog", "write[acme-search]")
	probe.ScopeRejected(errors.New("unknown resource"))
	probe.IssuanceFailed(errors.New("unknown resource"))
	probe.End()

	out := buf.String()
	for _, want := range []string{"scope rejected", "token issuance failed", "unknown resource"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggingObserver_VerificationLifecycle(t *testing.T) {
	logger, buf := newTestLogger()
	observer := NewLoggingObserver(logger)

	_, probe := observer.VerificationStarted(context.Background(), "acme-catalog", "w")
	probe.TokenDecoded("client_credentials")
	probe.AccessGranted()
	probe.End()

	out := buf.String()
	for _, want := range []string{"starting token verification", "token decoded", "access granted", "token verification completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggingObserver_VerificationDenied(t *testing.T) {
	logger, buf := newTestLogger()
	observer := NewLoggingObserver(logger)

	_, probe := observer.VerificationStarted(context.Background(), "acme-catalog", "w")
	probe.AccessDenied(errors.New("not authorized"))
	probe.End()

	out := buf.String()
	for _, want := range []string{"access denied", "not authorized"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewLoggingObserver_NilLoggerFallsBackToDefault(t *testing.T) {
	observer := NewLoggingObserver(nil)
	if observer == nil {
		t.Fatal("expected a non-nil observer")
	}
	// Should not panic when exercised.
	_, probe := observer.IssuanceStarted(context.Background(), "client_credentials", "acme-catalog", "")
	probe.End()
}
