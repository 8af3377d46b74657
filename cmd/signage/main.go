// Command signage runs the community signage content server and display
// clients.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/community-signage/internal/config"
	"github.com/sweeney/community-signage/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "signage",
	Short: "Community signage controller",
	Long: "Serves events, announcements and settings to displays, and runs the " +
		"display rotation that cycles through them.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(serveCmd, displayCmd, planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, lets apply override it from flags the
// user actually set, validates the result and sets up logging.
func loadConfig(cmd *cobra.Command, apply func(*cobra.Command, *config.Config)) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if apply != nil {
		apply(cmd, &cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.LogFormat(),
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("logging setup")
	}
	return cfg, logger, nil
}

func changedString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func changedInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func changedDuration(cmd *cobra.Command, name string, dst *time.Duration) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetDuration(name)
	}
}
