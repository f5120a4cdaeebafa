package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/openpermissions/authd/internal/directory"
)

type contextKey int

const clientContextKey contextKey = iota

// authenticate is the Basic-auth middleware guarding /token and /verify, per
// spec.md §6's auth header contract and auth/controllers/base.py's
// AuthBaseHandler.prepare. The credential is URL-decoded, then
// base64-decoded, then split on the first colon — in that order, matching
// the original's unquote_plus(base64.decodestring(...)).split(':', 1).
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, clientSecret, ok := parseBasicAuth(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody("Unauthenticated"))
			return
		}

		client, err := s.dir.Authenticate(r.Context(), clientID, clientSecret)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("Unauthenticated"))
			return
		}

		ctx := context.WithValue(r.Context(), clientContextKey, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseBasicAuth(header string) (clientID, clientSecret string, ok bool) {
	const prefix = "Basic "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}

	unescaped, err := url.QueryUnescape(header[len(prefix):])
	if err != nil {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return "", "", false
	}

	clientID, clientSecret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return clientID, clientSecret, true
}

func clientFromContext(ctx context.Context) *directory.Client {
	client, _ := ctx.Value(clientContextKey).(*directory.Client)
	return client
}
