package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/repcore/internal/configschema"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	ConfigPath string
	PeerID     string
	SQLitePath string
	LogLevel   string
}

// NewInitCommand creates the init command, which writes a fresh bootstrap
// config file. A peer ID is minted from a random UUIDv4
// (github.com/google/uuid) when the operator does not supply --peer.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new bootstrap config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "repcore.yaml", "path to write the config file")
	cmd.Flags().StringVar(&opts.PeerID, "peer", "", "peer id (random uuid if omitted)")
	cmd.Flags().StringVar(&opts.SQLitePath, "db", "repcore.db", "path to the sqlite persistence file")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	peerID := opts.PeerID
	if peerID == "" {
		peerID = uuid.NewString()
	}

	cfg := configschema.Config{
		PeerID:                peerID,
		SQLitePath:            opts.SQLitePath,
		LogLevel:              opts.LogLevel,
		DeferralWarnThreshold: 3,
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to marshal config", err)
	}

	if _, err := configschema.Load(raw); err != nil {
		return WrapExitError(ExitCommandError, "generated config failed validation", err)
	}

	if err := os.WriteFile(opts.ConfigPath, raw, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config file", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return f.Success(map[string]string{"config": opts.ConfigPath, "peer_id": peerID})
}
