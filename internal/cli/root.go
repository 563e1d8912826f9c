package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/keystone/internal/config"
	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/module"
	"github.com/roach88/keystone/internal/network"
)

// Version is set at build time.
var Version = "dev"

// RootOptions holds global flags for all commands, plus the collaborators
// tests and embedders may replace.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool
	Format     string // "json" | "text"

	// Registry supplies modules defined in Go. CUE modules from the
	// configured directory are registered alongside them.
	Registry *module.Registry

	// TransportFactory connects to a resolved network. Defaults to
	// DialTransport.
	TransportFactory TransportFactory

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Environ supplies environment variables for secret lookup. Defaults to
	// os.Environ.
	Environ func() []string
}

// TransportFactory builds the Transport for a resolved network. The returned
// close function releases its connection.
type TransportFactory func(ctx context.Context, p *network.Profile, cfg *config.Config, logger *slog.Logger) (engine.Transport, func(), error)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the keystone CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{})
}

// NewRootCommandWith creates the root command around opts.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keystone",
		Short:   "Keystone - declarative contract deployments",
		Long:    "Deploy graphs of interdependent contracts with a resumable, idempotent journal.",
		Version: Version,
		// Commands report their own errors; main prints the rest.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "keystone.yaml", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "file with secret values")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewWipeCommand(opts))
	cmd.AddCommand(NewUnlockCommand(opts))
	cmd.AddCommand(NewNetworksCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
