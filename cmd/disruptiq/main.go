package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"disruptiq/internal/config"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitGate    = 2
)

var (
	rootCmd = &cobra.Command{
		Use:           "disruptiq",
		Short:         "Static detection engine for repository risk signals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dbPath     string
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitFailure
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "disruptiq.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the scan history database (SQLite)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(detectorsCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.History.DBPath = dbPath
		cfg.History.Record = true
	}
	return cfg, nil
}
