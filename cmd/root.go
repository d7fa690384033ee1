// Package cmd implements the slipway CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/logging"
)

var (
	cfgFile string
	dataDir string
	verbose bool

	appVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Slipway — build, push, and deploy container pipelines",
	Long: "Slipway executes build-push-deploy pipelines: it builds a container image,\n" +
		"pushes it to a registry, applies the target's manifests, and watches the\n" +
		"rollout until it converges.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath(), "settings file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for run results (default ~/.local/share/slipway)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("slipway %s (commit: %s)\n", version, commit))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings reads the settings file and applies the persistent flag
// overrides on top.
func loadSettings() (config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logging.JSONLogger {
	return logging.NewJSONLogger(os.Stderr, cfg.Verbose)
}
