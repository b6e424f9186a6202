package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"im3viewer/pkg/config"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "im3viewer",
	Short: "Browse hyperspectral .im3 cubes and composite them into RGB images",
	Long: `im3viewer loads every hyperspectral cube in a directory and builds false
colour RGB composites from them.

Each output channel is the mean of a band range inside every selected cube,
summed across the cubes and stretched to the full 0-255 range.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "im3viewer.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(listCmd, composeCmd, configCmd)
}

// loadConfig reads the configuration file named by --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// newLogger returns a stderr logger, or nil when progress logging is off
func newLogger(cfg *config.Config) *log.Logger {
	if !cfg.Output.Verbose {
		return nil
	}
	return log.New(os.Stderr, "", log.Ldate|log.Ltime)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("im3viewer: %v", err)
	}
}
