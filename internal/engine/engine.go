package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"disruptiq/internal/config"
	"disruptiq/internal/detector"
	"disruptiq/internal/git"
	"disruptiq/internal/language"
	"disruptiq/internal/linker"
	"disruptiq/internal/report"
	"disruptiq/internal/scorer"
	"disruptiq/internal/signal"
	"disruptiq/internal/walker"
)

// DetectorID attributes diagnostics raised by the engine itself.
const DetectorID = "engine"

// MainBranchTag is added to every finding when the scan root is checked out
// on main or master.
const MainBranchTag = "main-branch"

type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for the scan date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOnly restricts the scan to these root-relative paths.
func WithOnly(paths []string) Option {
	return func(e *Engine) {
		e.only = make(map[string]bool, len(paths))
		for _, p := range paths {
			e.only[p] = true
		}
	}
}

// WithGitMetadata toggles reading commit and branch from the enclosing
// repository. It is on by default.
func WithGitMetadata(enabled bool) Option {
	return func(e *Engine) { e.gitMetadata = enabled }
}

// WithLinker replaces the default rule chain.
func WithLinker(c *linker.Chain) Option {
	return func(e *Engine) { e.linker = c }
}

// Engine fans files out to detector workers and folds the results into a
// report. It keeps no reference to a report after Scan returns.
type Engine struct {
	cfg         *config.Config
	reg         *detector.Registry
	scorer      *scorer.Scorer
	linker      *linker.Chain
	logger      hclog.Logger
	now         func() time.Time
	only        map[string]bool
	gitMetadata bool
}

func New(cfg *config.Config, reg *detector.Registry, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:         cfg,
		reg:         reg,
		scorer:      scorer.New(scorer.FromConfig(cfg.Risk, cfg.Scan.MinConfidence), reg.Override),
		linker:      linker.NewDefaultChain(),
		logger:      hclog.NewNullLogger(),
		now:         time.Now,
		gitMetadata: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// fileResult is what one worker produced for one file.
type fileResult struct {
	path       string
	signals    []signal.Signal
	diagnostic *signal.Diagnostic
	incomplete bool
}

type walkResult struct {
	stats        walker.Stats
	undispatched []string
}

// Scan walks root and runs every applicable detector over each file.
// A bad root is returned as an InputError before any work starts. Timeouts
// produce a partial report with Summary.Complete=false.
func (e *Engine) Scan(ctx context.Context, root string) (*report.Report, error) {
	absRoot, err := walker.ValidateRoot(root)
	if err != nil {
		return nil, err
	}
	start := e.now()

	meta := e.metadataStage(absRoot, start)

	results, walked, err := e.detectStage(ctx, absRoot)
	if err != nil {
		return nil, err
	}

	signals, diags, stats := e.collectStage(results, walked)
	if meta.Branch == "main" || meta.Branch == "master" {
		tagMainBranch(signals)
	}

	signals = e.scorer.Normalize(signals)
	secrets := report.SecretValues(signals)
	signals = e.scorer.Filter(signals)

	rels, stages := e.linker.Run(signals)
	for _, st := range stages {
		e.logger.Debug("linker rule finished", "rule", st.Rule, "candidates", st.Stats.Candidates, "linked", st.Relationships, "skipped", st.Stats.Skipped)
	}

	r, err := report.NewAggregator(e.scorer, e.cfg.Scan.Redact).WithSecrets(secrets).Build(meta, signals, rels, diags, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate report: %w", err)
	}
	e.logger.Info("scan finished",
		"files", r.Summary.FilesScanned,
		"skipped", r.Summary.FilesSkipped,
		"findings", r.Summary.Findings,
		"relationships", len(r.Relationships),
		"complete", r.Summary.Complete,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return r, nil
}

func (e *Engine) metadataStage(absRoot string, start time.Time) report.Metadata {
	meta := report.Metadata{
		Root:            absRoot,
		ScanDate:        start.UTC().Format(time.RFC3339),
		ScannerVersion:  report.ScannerVersion,
		DetectorsLoaded: e.reg.EnabledIDs(),
	}
	if !e.gitMetadata {
		return meta
	}
	md, err := git.CollectRepositoryMetadata(absRoot)
	if err != nil {
		e.logger.Debug("no repository metadata", "root", absRoot, "error", err)
		return meta
	}
	meta.CommitHash = md.CommitHash
	meta.Branch = md.BranchName
	return meta
}

// detectStage streams walk records into a jobs channel served by a fixed
// number of workers. Each worker appends to its own result slice.
func (e *Engine) detectStage(ctx context.Context, absRoot string) ([][]fileResult, walkResult, error) {
	scanCtx := ctx
	if secs := e.cfg.Scan.TimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	threads := e.cfg.Scan.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	w := walker.New(e.walkerOptions(), e.logger.Named("walker"))
	jobs := make(chan *walker.FileRecord, threads)
	perWorker := make([][]fileResult, threads)
	var walked walkResult

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		// The walk uses the caller's context so files left over by the scan
		// deadline are still enumerated and reported as incomplete.
		stats, err := w.Walk(ctx, absRoot, func(rec *walker.FileRecord) error {
			if scanCtx.Err() != nil {
				walked.undispatched = append(walked.undispatched, rec.Path)
				return nil
			}
			select {
			case jobs <- rec:
			case <-scanCtx.Done():
				walked.undispatched = append(walked.undispatched, rec.Path)
			}
			return nil
		})
		walked.stats = stats
		return err
	})

	for i := 0; i < threads; i++ {
		g.Go(func() error {
			for rec := range jobs {
				perWorker[i] = append(perWorker[i], e.scanFile(scanCtx, rec))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, walked, err
	}
	if len(walked.undispatched) > 0 {
		e.logger.Warn("scan deadline reached before every file was dispatched", "files", len(walked.undispatched))
	}
	return perWorker, walked, nil
}

func (e *Engine) walkerOptions() walker.Options {
	sc := e.cfg.Scan
	opts := walker.Options{
		Include:      sc.Include,
		Exclude:      sc.Exclude,
		MaxFileSize:  sc.MaxFileSizeBytes,
		UseGitignore: sc.UseGitignore,
		Only:         e.only,
	}
	for _, raw := range sc.Languages {
		opts.Languages = append(opts.Languages, language.Parse(raw))
	}
	return opts
}

// collectStage merges worker output, records incomplete files and drops
// duplicate signal ids.
func (e *Engine) collectStage(perWorker [][]fileResult, walked walkResult) ([]signal.Signal, []signal.Diagnostic, report.Stats) {
	stats := report.Stats{Complete: true}
	diags := append([]signal.Diagnostic(nil), walked.stats.Diagnostics...)

	var signals []signal.Signal
	for _, results := range perWorker {
		for _, res := range results {
			switch {
			case res.diagnostic != nil:
				diags = append(diags, *res.diagnostic)
			case res.incomplete:
				stats.FilesIncomplete++
			default:
				stats.FilesScanned++
			}
			signals = append(signals, res.signals...)
		}
	}
	for _, path := range walked.undispatched {
		stats.FilesIncomplete++
		signals = append(signals, incompleteSignal(path))
	}
	stats.FilesSkipped = len(diags)

	report.SortSignals(signals)
	seen := make(map[string]bool, len(signals))
	out := signals[:0]
	for _, s := range signals {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out, diags, stats
}

func tagMainBranch(signals []signal.Signal) {
	for i := range signals {
		if signal.IsDiagnostic(signals[i].Type) {
			continue
		}
		signals[i].Tags = signal.NormalizeTags(append(signals[i].Tags, MainBranchTag))
	}
}

func incompleteSignal(path string) signal.Signal {
	return detector.Diagnostic(signal.TypeScanIncomplete, DetectorID, path, fmt.Sprintf("scan incomplete for file %s", path))
}
