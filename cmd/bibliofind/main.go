// Command bibliofind is the conversational bibliographic discovery engine's
// CLI entry point (spec.md §6): ingest a MARC corpus, build alias maps
// offline, and serve the turn-based conversation protocol. Grounded on
// steveyegge-beads/cmd/bd/main.go's root-command idiom: a package-level
// rootCmd, persistent flags layered under internal/config, and a
// signal-aware root context set up once in PersistentPreRun.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raro-catalog/bibliofind/internal/config"
	"github.com/raro-catalog/bibliofind/internal/logging"
)

var (
	cfgPath  string
	logLevel string

	// rootCtx is cancelled on SIGINT/SIGTERM, the same signal-aware
	// context pattern the teacher sets up in PersistentPreRun.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bibliofind",
	Short: "bibliofind - conversational bibliographic discovery over a rare-book corpus",
	Long:  `A MARC-record indexer and conversation controller that turns free-text questions into bounded catalog queries (spec.md).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		cfg = loaded

		logging.Init(logging.Options{Level: cfg.LogLevel, Format: "console", Component: "bibliofind"})
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(buildAliasMapCmd)
}

func main() {
	defer func() {
		if rootCancel != nil {
			rootCancel()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
