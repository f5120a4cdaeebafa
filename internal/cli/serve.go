package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openpermissions/authd/internal/config"
	"github.com/openpermissions/authd/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authd server",
		Long: `Start authd's HTTP server, serving /, /token and /verify.

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (AUTHD_*)
  3. Configuration file (if --config or AUTHD_CONFIG is set)
  4. Built-in defaults

Examples:
  # Start with default settings
  authd serve

  # Override the listen address
  authd serve --addr :9090

  # Use a custom config file
  authd serve --config /etc/authd/config.yaml`,
		RunE: runServe,
	}

	// Auto-register all config flags
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = os.Getenv("AUTHD_CONFIG")
	}

	// 2. Load configuration (file + env vars + flags)
	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// 3. Create provider to build all components from config
	provider := config.NewProvider(cfg)
	server.Version = Version

	// 4. Build the directory and grant dependencies via the provider
	dir, err := provider.Directory()
	if err != nil {
		return fmt.Errorf("failed to build directory: %w", err)
	}

	grantDeps, err := provider.GrantDeps(ctx)
	if err != nil {
		return fmt.Errorf("failed to build grant dependencies: %w", err)
	}

	// 5. Create and start the server
	srv := server.New(server.Config{
		Addr:      provider.Addr(),
		Directory: dir,
		GrantDeps: grantDeps,
		Observer:  provider.Observer(),
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("authd is running", "addr", provider.Addr(), "config", configPath)

	// 6. Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")

	// 7. Graceful shutdown
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}
