package engine

import (
	"context"
	"time"

	"disruptiq/internal/detector"
	scanerr "disruptiq/internal/errors"
	"disruptiq/internal/signal"
	"disruptiq/internal/syntax"
	"disruptiq/internal/walker"
)

// scanFile loads one record and runs its detectors under the per-file
// deadline. Work that overruns the deadline is abandoned and its partial
// signals are dropped.
func (e *Engine) scanFile(ctx context.Context, rec *walker.FileRecord) fileResult {
	res := fileResult{path: rec.Path}
	if ctx.Err() != nil {
		res.incomplete = true
		res.signals = []signal.Signal{incompleteSignal(rec.Path)}
		return res
	}

	content, err := rec.Content()
	if err != nil {
		stage := "read"
		var fileErr *scanerr.FileError
		if scanerr.As(err, &fileErr) {
			stage = fileErr.Stage
		}
		e.logger.Debug("skipping file", "path", rec.Path, "error", err)
		res.diagnostic = &signal.Diagnostic{File: rec.Path, Stage: stage, Message: err.Error()}
		return res
	}

	fileCtx := ctx
	if secs := e.cfg.Scan.FileTimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	done := make(chan []signal.Signal, 1)
	go func() {
		done <- e.detectFile(fileCtx, rec, content)
	}()

	select {
	case sigs := <-done:
		if fileCtx.Err() != nil {
			break
		}
		res.signals = sigs
		return res
	case <-fileCtx.Done():
	}

	e.logger.Warn("file scan abandoned", "path", rec.Path, "error", fileCtx.Err())
	res.incomplete = true
	res.signals = []signal.Signal{incompleteSignal(rec.Path)}
	return res
}

// detectFile parses the file once and runs every resolved detector on it.
func (e *Engine) detectFile(ctx context.Context, rec *walker.FileRecord, content string) []signal.Signal {
	f := detector.NewFile(rec.Path, rec.Language, content)
	if syntax.Supported(rec.Language) {
		tree, err := syntax.Parse(ctx, rec.Language, []byte(content))
		if err != nil {
			e.logger.Debug("parse failed", "path", rec.Path, "error", err)
		} else {
			f.Tree = tree
			defer tree.Close()
		}
	}

	var out []signal.Signal
	for _, d := range e.reg.Resolve(rec.Language) {
		if ctx.Err() != nil {
			return out
		}
		sigs, err := runDetector(ctx, d, f)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			e.logger.Error("detector failed", "detector", d.ID(), "path", rec.Path, "error", err)
			out = append(out, detector.Diagnostic(signal.TypeDetectorError, d.ID(), rec.Path, err.Error()))
			continue
		}
		out = append(out, sigs...)
	}
	return out
}

// runDetector drains one detector. A panic is converted into a DetectorError
// and whatever the detector produced before it is discarded.
func runDetector(ctx context.Context, d detector.Detector, f *detector.File) (sigs []signal.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sigs = nil
			err = scanerr.NewDetectorError(d.ID(), f.Path, r)
		}
	}()
	for m := range d.Match(f) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		sigs = append(sigs, f.ToSignal(d, m))
	}
	return sigs, nil
}
