// Command flashbuy is the console front end: it runs a countdown purchase
// without the GUI and offers the diagnostic tools used to set one up.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ConserveLee/flash-buyer/internal/config"
	"github.com/ConserveLee/flash-buyer/internal/logging"
)

// Exit codes
const (
	exitOK        = 0
	exitError     = 1
	exitTimeout   = 124
	exitInterrupt = 130
)

var (
	configPath string
	overrides  []string
	verbose    bool
	quiet      bool
)

// exitCodeError carries a process exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error { return &exitCodeError{code: code, err: err} }

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		code := exitError
		var ec *exitCodeError
		if errors.As(err, &ec) {
			code = ec.code
		}
		if ec == nil || ec.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flashbuy",
		Short: "Watch an on-screen countdown and click buy the moment it ends",
		Long: `flashbuy reads a countdown from a screen region with OCR and, when it reaches
zero, clicks the buy button and optionally the confirm button.

Example:
  flashbuy run --timeout 10m
  flashbuy test-ocr --save-image ocr.png
  flashbuy config set buy_btn_pos "[820, 640]"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $FLASHBUY_CONFIG or config.yaml)")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "Override a config value for this invocation, key=value (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print errors and the final result")

	rootCmd.AddCommand(
		newRunCmd(),
		newTestOCRCmd(),
		newTestClickCmd(),
		newPositionCmd(),
		newProbeCmd(),
		newValidateCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.Path()
}

// loadConfig loads the config file and applies environment and --set overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("--set expects key=value, got %q", o)
		}
		if err := cfg.Set(strings.TrimSpace(key), value); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "DEBUG"
	}
	if quiet {
		cfg.Log.Console = false
	}
	return cfg, nil
}

// setupLogging installs the slog logger for cfg.
func setupLogging(cfg *config.Config) (*slog.Logger, func() error, error) {
	return logging.Setup(cfg.Logging())
}

// say prints unless --quiet.
func say(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Printf(format+"\n", args...)
}
