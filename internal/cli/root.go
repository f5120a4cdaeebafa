// Package cli wires cobra commands to the configuration loader and
// provider, the way the teacher's own internal/cli does.
package cli

import (
	"github.com/spf13/cobra"
)

// configFile holds the --config flag value shared by every subcommand.
var configFile string

// NewRootCmd builds the authd command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authd",
		Short: "OAuth2 authorization server for service-to-service access",
		Long: `authd issues and verifies scoped bearer tokens for services
authenticating with client_id/client_secret credentials, per a configured
directory of services, repositories and their static permission grants.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML, JSON or TOML config file (default: $AUTHD_CONFIG)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the authd command tree.
func Execute() error {
	return NewRootCmd().Execute()
}
