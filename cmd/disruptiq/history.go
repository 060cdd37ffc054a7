package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"disruptiq/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List recorded scans",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, root, err := openHistory(cmd, args)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		defer store.Close()

		scans, err := store.ListScans(context.Background(), root, historyLimit)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		if len(scans) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tROOT\tBRANCH\tFINDINGS\tRISK\tCOMPLETE")
		for _, s := range scans {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%t\n", s.ID, s.ScanDate, s.Root, s.Branch, s.Findings, s.RiskScore, s.Complete)
		}
		return tw.Flush()
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff [path]",
	Short: "Show new and fixed findings between the last two scans of a root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, root, err := openHistory(cmd, args)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		defer store.Close()

		diff, err := store.LatestDiff(context.Background(), root)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}

		fmt.Printf("🔍 %s -> %s\n", diff.Previous, diff.Current)
		fmt.Printf("  -> %d new findings\n", len(diff.New))
		for _, id := range diff.New {
			fmt.Printf("     + %s\n", id)
		}
		fmt.Printf("  -> %d fixed findings\n", len(diff.Fixed))
		for _, id := range diff.Fixed {
			fmt.Printf("     - %s\n", id)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of scans to list (0 lists all)")
	historyCmd.AddCommand(historyDiffCmd)
}

// openHistory opens the configured database. The optional path argument
// selects a scan root; it is resolved the same way the engine resolves it.
func openHistory(cmd *cobra.Command, args []string) (*storage.SQLiteStore, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	root := ""
	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return nil, "", err
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		root = abs
	}
	if _, err := os.Stat(cfg.History.DBPath); err != nil {
		return nil, "", fmt.Errorf("no scan history at %s: %w", cfg.History.DBPath, err)
	}
	store, err := storage.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, root, nil
}
