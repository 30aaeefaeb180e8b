// Package cli implements eventctl, the operator command line for the
// schedule store. It shares its configuration file with the daemon.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"eventbot/internal/app"
	"eventbot/internal/config"
	logx "eventbot/pkg/logx"
)

// Build information, set with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

type rootOptions struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
}

func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "eventctl",
		Short: "Inspect and reconcile event reminder schedules.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return ro.loadEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&ro.ConfigPath, "config", "c", "./config.yaml", "Path to the bot configuration (json or yaml).")
	cmd.PersistentFlags().StringVar(&ro.EnvFile, "env-file", ".env", "Dotenv file loaded before the configuration. A missing file is ignored.")
	cmd.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "warn", "Console log level.")

	AddCommands(cmd, ro)
	return cmd
}

func AddCommands(topLevel *cobra.Command, ro *rootOptions) {
	addReconcile(topLevel, ro)
	addShow(topLevel, ro)
	addExisting(topLevel, ro)
	addNext(topLevel, ro)
	addExportICS(topLevel, ro)
	addCatalog(topLevel, ro)
	addVersion(topLevel)
}

func (o *rootOptions) loadEnv() error {
	if strings.TrimSpace(o.EnvFile) == "" {
		return nil
	}
	if err := godotenv.Load(o.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// open loads the configuration and builds the shared core. Batch changes
// made here are only logged; a running daemon picks them up on its next
// resync.
func (o *rootOptions) open(ctx context.Context) (*app.Core, error) {
	cfg, err := config.NewManager(o.ConfigPath).Parse()
	if err != nil {
		return nil, err
	}
	return app.OpenCore(ctx, cfg, nil, logx.NewConsole(o.LogLevel))
}

// requireStore is for commands that read persisted rows.
func requireStore(core *app.Core) error {
	if core.Store == nil {
		return errors.New("storage is disabled (storage.driver=none)")
	}
	return nil
}
