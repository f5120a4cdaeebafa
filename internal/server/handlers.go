package server

import (
	"errors"
	"net/http"

	"github.com/openpermissions/authd/internal/grant"
)

// singleFormValue returns the sole value of a POST form field, or ok=false
// if the field was supplied more than once. A missing field returns ("",
// true): resource_id is optional on both /token and /verify, it is only
// rejected when ambiguous.
func singleFormValue(r *http.Request, key string) (value string, ok bool) {
	vals := r.PostForm[key]
	if len(vals) > 1 {
		return "", false
	}
	if len(vals) == 0 {
		return "", true
	}
	return vals[0], true
}

// handleRoot answers GET / with the service name and version, per
// auth/controllers/root_handler.py.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": http.StatusOK,
		"data": map[string]string{
			"service_name": ServiceName,
			"version":      Version,
		},
	})
}

// handleToken issues a new token for the grant named by the grant_type form
// field, per spec.md §4.6's /token contract.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	client := clientFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request"))
		return
	}

	resourceID, ok := singleFormValue(r, "resource_id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request"))
		return
	}

	req := &grant.Request{
		GrantType:       r.PostFormValue("grant_type"),
		ClientID:        client.ID,
		Client:          client,
		Scope:           r.PostFormValue("scope"),
		RequestedAccess: r.PostFormValue("requested_access"),
		ResourceID:      resourceID,
		Assertion:       r.PostFormValue("assertion"),
	}

	ctx, probe := s.observer.IssuanceStarted(r.Context(), req.GrantType, req.ClientID, req.Scope)
	defer probe.End()

	g, err := grant.Get(req.GrantType, req, s.grantDeps)
	if err != nil {
		probe.IssuanceFailed(err)
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_grant"))
		return
	}

	signed, expiresAt, err := g.GenerateToken(ctx)
	if err != nil {
		probe.IssuanceFailed(err)
		writeJSON(w, issuanceStatusFor(err), errorBody(issuanceMessageFor(err)))
		return
	}

	probe.TokenSigned(req.ClientID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       http.StatusOK,
		"access_token": signed,
		"token_type":   "bearer",
		"expiry":       expiresAt.Unix(),
	})
}

// handleVerify answers whether a presented token grants requested_access to
// resource_id (or to the caller itself), per spec.md §4.6's /verify
// contract. Unlike /token, verification failures are reported as
// has_access:false at HTTP 200, not as error statuses — the endpoint's job
// is to answer the question, not to complain.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	client := clientFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request"))
		return
	}

	signedToken := r.PostFormValue("token")
	if signedToken == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("token is required"))
		return
	}

	resourceID, ok := singleFormValue(r, "resource_id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request"))
		return
	}

	req := &grant.Request{
		ClientID:        client.ID,
		Client:          client,
		RequestedAccess: r.PostFormValue("requested_access"),
		ResourceID:      resourceID,
	}

	ctx, probe := s.observer.VerificationStarted(r.Context(), req.ClientID, req.RequestedAccess)
	defer probe.End()

	g, claims, err := grant.GetForToken(ctx, signedToken, req, s.grantDeps)
	if err != nil {
		if errors.Is(err, grant.ErrInvalidGrantType) || errors.Is(err, grant.ErrBadRequest) {
			probe.VerificationFailed(err)
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request"))
			return
		}
		// A malformed or unverifiable token decodes to token_invalid; report
		// it as a negative answer, not an error, per spec.md §7.
		probe.AccessDenied(err)
		writeJSON(w, http.StatusOK, map[string]any{"status": http.StatusOK, "has_access": false})
		return
	}
	probe.TokenDecoded(claims.GrantType)

	if err := g.VerifyAccess(ctx, signedToken); err != nil {
		if errors.Is(err, grant.ErrBadRequest) {
			probe.VerificationFailed(err)
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request"))
			return
		}
		probe.AccessDenied(err)
		writeJSON(w, http.StatusOK, map[string]any{"status": http.StatusOK, "has_access": false})
		return
	}

	probe.AccessGranted()
	writeJSON(w, http.StatusOK, map[string]any{"status": http.StatusOK, "has_access": true})
}
