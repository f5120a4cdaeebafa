package probe

import (
	"context"
	"log/slog"
)

// loggingObserver logs every observability event via slog.
type loggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs issuance and
// verification events with structured logging. A nil logger falls back to
// slog.Default().
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingObserver{logger: logger}
}

func (o *loggingObserver) IssuanceStarted(ctx context.Context, grantType, clientID, scope string) (context.Context, IssuanceProbe) {
	l := o.logger.With("event", "token_issuance", "grant_type", grantType, "client_id", clientID)
	l.LogAttrs(ctx, slog.LevelDebug, "starting token issuance", slog.String("requested_scope", scope))
	return ctx, &loggingIssuanceProbe{ctx: ctx, logger: l}
}

type loggingIssuanceProbe struct {
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingIssuanceProbe) ScopeResolved(scope string) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "scope resolved", slog.String("scope", scope))
}

func (p *loggingIssuanceProbe) ScopeRejected(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelInfo, "scope rejected", slog.String("error", err.Error()))
}

func (p *loggingIssuanceProbe) TokenSigned(keyID string) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "token signed", slog.String("key_id", keyID))
}

func (p *loggingIssuanceProbe) IssuanceFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelError, "token issuance failed", slog.String("error", err.Error()))
}

func (p *loggingIssuanceProbe) End() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "token issuance completed")
}

func (o *loggingObserver) VerificationStarted(ctx context.Context, clientID, requestedAccess string) (context.Context, VerificationProbe) {
	l := o.logger.With("event", "token_verification", "client_id", clientID, "requested_access", requestedAccess)
	l.LogAttrs(ctx, slog.LevelDebug, "starting token verification")
	return ctx, &loggingVerificationProbe{ctx: ctx, logger: l}
}

type loggingVerificationProbe struct {
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingVerificationProbe) TokenDecoded(grantType string) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "token decoded", slog.String("grant_type", grantType))
}

func (p *loggingVerificationProbe) AccessGranted() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "access granted")
}

func (p *loggingVerificationProbe) AccessDenied(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelInfo, "access denied", slog.String("error", err.Error()))
}

func (p *loggingVerificationProbe) VerificationFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelError, "token verification failed", slog.String("error", err.Error()))
}

func (p *loggingVerificationProbe) End() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "token verification completed")
}
