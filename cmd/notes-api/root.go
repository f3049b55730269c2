package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrshanahan/notes-service/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notes-api",
	Short: "Notes lifecycle service",
	Long: fmt.Sprintf(`notes-api serves per-user notes over HTTP and gRPC and announces every
change on the message broker.

Settings come from an optional YAML file (--config) and NOTES_API_*
environment variables, for example:
	NOTES_API_JWT_SECRET:        shared secret for HS256 bearer tokens
	NOTES_API_AUTH_PROVIDER_URL: base URL of the OIDC authorization server
	NOTES_API_DB_DIR:            directory holding %s (default: %s)
	NOTES_API_PORT:              HTTP port (default: %d)
	NOTES_API_GRPC_PORT:         gRPC port, 0 disables it (default: %d)`,
		config.DefaultNotesDatabaseName,
		config.NotesConfigDirectory,
		config.DefaultPort,
		config.DefaultGRPCPort),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, os.Getenv)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		logger = cfg.Log.NewLogger(os.Stderr, verbose)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
