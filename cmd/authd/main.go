// Command authd runs the OAuth2 authorization server: it issues and
// verifies scoped bearer tokens for services authenticating with
// client_id/client_secret credentials against a configured directory.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openpermissions/authd/internal/cli"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
