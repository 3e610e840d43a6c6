package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Laudkyle/NaviAudio/cmd/navi/internal/config"
	"github.com/Laudkyle/NaviAudio/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	formatOutput string
	outputFile   string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "navi",
	Short: "Press-and-hold voice command classification",
	Long: `navi - record a short utterance and classify it.

A recording is turned into the feature tensor the configured backend
declares and classified either by the hosted prediction server (remote)
or by an on-device model (onnx, ncnn).

Configuration is read from --config, $NAVI_CONFIG, or the OS config
directory:
  macOS:   ~/Library/Application Support/navi/navi.yaml
  Linux:   ~/.config/navi/navi.yaml
  Windows: %AppData%/navi/navi.yaml

Examples:
  # Hold to record from the default microphone, Enter to release
  navi record

  # Classify an existing recording
  navi classify utterance.wav --format json

  # Serve the websocket gesture UI and metrics
  navi serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $NAVI_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "table", "output format: table, yaml or json")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Commands that need config get the error via GetConfig; 'navi
		// version' still works.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// logger builds the command logger: warnings and up on stderr, debug with
// --verbose.
func logger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// output writes a command result in the --format format.
func output(result any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
		Writer: os.Stdout,
	})
}
