package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"disruptiq/internal/config"
	"disruptiq/internal/detectors"
	"disruptiq/internal/engine"
	"disruptiq/internal/git"
	"disruptiq/internal/logger"
	"disruptiq/internal/report"
	sig "disruptiq/internal/signal"
	"disruptiq/internal/storage"
)

var scanFlags struct {
	output        string
	format        string
	minConfidence float64
	languages     []string
	threads       int
	failOn        string
	timeout       int
	redact        bool
	changedSince  string
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a repository and write a report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		if err := applyScanFlags(cmd, cfg); err != nil {
			return &exitError{code: exitFailure, err: err}
		}

		var gate sig.Severity
		if scanFlags.failOn != "" {
			sev, ok := sig.ParseSeverity(scanFlags.failOn)
			if !ok {
				return &exitError{code: exitFailure, err: fmt.Errorf("unknown --fail-on severity %q", scanFlags.failOn)}
			}
			gate = sev
		}

		writer, err := report.WriterFor(scanFlags.format)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		if tw, ok := writer.(report.TableWriter); ok {
			tw.NoColor = scanFlags.output != ""
			writer = tw
		}

		log := logger.New(cfg.Logger, "disruptiq")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		opts := []engine.Option{engine.WithLogger(log.Named("engine"))}
		if scanFlags.changedSince != "" {
			paths, err := changedPaths(ctx, path, scanFlags.changedSince)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			fmt.Fprintf(os.Stderr, "📝 Detected %d changed files since %s.\n", len(paths), scanFlags.changedSince)
			opts = append(opts, engine.WithOnly(paths))
		}

		reg := detectors.NewDefaultRegistry(detectors.SettingsFromConfig(cfg.Scan.Detectors), detectors.OptionsFromConfig(cfg))
		eng := engine.New(cfg, reg, opts...)

		fmt.Fprintf(os.Stderr, "📂 Scanning directory: %s\n", path)
		start := time.Now()
		r, err := eng.Scan(ctx, path)
		if err != nil {
			return &exitError{code: exitFailure, err: fmt.Errorf("scan failed: %w", err)}
		}
		fmt.Fprintf(os.Stderr, "✅ Scan finished in %v. %d findings, risk %s.\n",
			time.Since(start).Round(time.Millisecond), r.Summary.Findings, r.Summary.RiskAssessment)

		if err := writeReport(writer, r, scanFlags.output); err != nil {
			return &exitError{code: exitFailure, err: err}
		}

		if cfg.History.Record {
			if err := recordScan(ctx, cfg.History.DBPath, r, log); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
		}

		if gate != "" && report.FailOn(r, gate) {
			fmt.Fprintf(os.Stderr, "⛔ Findings at or above %s.\n", gate)
			return &exitError{code: exitGate}
		}
		return nil
	},
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanFlags.output, "output", "o", "", "Write the report to a file instead of stdout")
	f.StringVarP(&scanFlags.format, "format", "f", "json", "Report format: "+strings.Join(report.Formats, ", "))
	f.Float64Var(&scanFlags.minConfidence, "min-confidence", 0.5, "Drop findings below this confidence")
	f.StringSliceVar(&scanFlags.languages, "languages", nil, "Only scan these languages (comma separated)")
	f.IntVar(&scanFlags.threads, "threads", 0, "Number of detector workers (default: CPU count)")
	f.StringVar(&scanFlags.failOn, "fail-on", "", "Exit with code 2 when a finding reaches this severity")
	f.IntVar(&scanFlags.timeout, "timeout", 0, "Global scan timeout in seconds (0 disables)")
	f.BoolVar(&scanFlags.redact, "redact", false, "Mask secret values in the report")
	f.StringVar(&scanFlags.changedSince, "changed-since", "", "Only scan files changed since this git ref")
}

// applyScanFlags overrides config values with flags the user actually set.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("min-confidence") {
		cfg.Scan.MinConfidence = scanFlags.minConfidence
	}
	if f.Changed("languages") {
		cfg.Scan.Languages = scanFlags.languages
	}
	if f.Changed("threads") {
		cfg.Scan.Threads = scanFlags.threads
	}
	if f.Changed("timeout") {
		cfg.Scan.TimeoutSeconds = scanFlags.timeout
	}
	if f.Changed("redact") {
		cfg.Scan.Redact = scanFlags.redact
	}
	return cfg.Validate()
}

func changedPaths(ctx context.Context, root, ref string) ([]string, error) {
	md, err := git.CollectRepositoryMetadata(root)
	if err != nil {
		return nil, fmt.Errorf("--changed-since needs a git repository: %w", err)
	}
	changes, err := git.GetChangedFiles(ctx, md.RepoRootFolder, ref)
	if err != nil {
		return nil, err
	}
	return git.PathsUnder(changes, md.Subfolder), nil
}

func writeReport(w report.Writer, r *report.Report, output string) error {
	var out io.Writer = os.Stdout
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}
	if err := w.Write(out, r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "💾 Report written to %s\n", output)
	}
	return nil
}

func recordScan(ctx context.Context, path string, r *report.Report, log hclog.Logger) error {
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	id, err := store.SaveReport(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	log.Debug("scan recorded", "id", id, "db", path)
	return nil
}
