// Package cli is the splitwiser command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitwiser-client/internal/config"
	"github.com/mmynk/splitwiser-client/pkg/logging"
)

// Set at build time with -ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

var (
	homeFlag        string
	apiURLFlag      string
	logLevelFlag    string
	metricsAddrFlag string

	cfg     config.Config
	cfgHome string
)

var rootCmd = &cobra.Command{
	Use:   "splitwiser",
	Short: "Track shared expenses from the terminal",
	Long: `splitwiser is a client for the Splitwiser shared-expense service.

Log in once and the session is kept in ~/.splitwiser until you log out.
Run "splitwiser shell" for an interactive session, or use the one-shot
commands below from scripts.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&homeFlag, "home", "", "settings directory (default $SPLITWISER_HOME or ~/.splitwiser)")
	flags.StringVar(&apiURLFlag, "api-url", "", "API base URL (overrides config)")
	flags.StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error (overrides config)")
	flags.StringVar(&metricsAddrFlag, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	home := homeFlag
	if home == "" {
		home = config.Home()
	}

	loaded, err := config.Load(home)
	if err != nil {
		return err
	}
	if apiURLFlag != "" {
		loaded.API.URL = apiURLFlag
	}
	if logLevelFlag != "" {
		loaded.Log.Level = logLevelFlag
	}
	if metricsAddrFlag != "" {
		loaded.Metrics.Addr = metricsAddrFlag
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	cfgHome = home

	logging.SetupFromString(cfg.Log.Level)
	slog.Debug("Config loaded", "home", home, "api_url", cfg.API.URL)
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "splitwiser %s (built %s)\n", version, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
