// Package server exposes the three HTTP endpoints this service presents to
// callers: the root discovery handler, and the Basic-auth-guarded /token
// and /verify endpoints that front the grant registry.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/openpermissions/authd/internal/directory"
	"github.com/openpermissions/authd/internal/grant"
	"github.com/openpermissions/authd/internal/probe"
)

// ServiceName is reported by the root handler, per
// auth/controllers/root_handler.py's fixed service_name field.
const ServiceName = "Open Permissions Platform Authentication Service"

// Version is reported by the root handler. Set from the cli package's
// build-time version at startup.
var Version = "dev"

// Config are the dependencies New needs to build a Server.
type Config struct {
	Addr      string
	Directory directory.Directory
	GrantDeps grant.Deps
	Observer  probe.Observer
}

// Server owns the plain net/http listener serving this service's endpoints.
type Server struct {
	addr      string
	dir       directory.Directory
	grantDeps grant.Deps
	observer  probe.Observer

	httpServer *http.Server
}

// New builds a Server from cfg. Call Start to begin serving.
func New(cfg Config) *Server {
	observer := cfg.Observer
	if observer == nil {
		observer = probe.NoOpObserver{}
	}
	return &Server{
		addr:      cfg.Addr,
		dir:       cfg.Directory,
		grantDeps: cfg.GrantDeps,
		observer:  observer,
	}
}

// Start binds the listener and begins serving in the background. It returns
// once the listener is bound; request handling continues on a goroutine
// until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("POST /token", s.authenticate(http.HandlerFunc(s.handleToken)))
	mux.Handle("POST /verify", s.authenticate(http.HandlerFunc(s.handleVerify)))

	// CORS preflight (OPTIONS) is passed through per spec.md §6; the grant
	// endpoints enforce authorization via Basic auth and the directory, not
	// via browser origin, so there's no allowlist to apply here.
	corsMiddleware := cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: corsMiddleware(mux),
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped unexpectedly", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete or ctx to be canceled, whichever comes first.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
