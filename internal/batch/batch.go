// Package batch converts directories of ladder exports and runs the pattern
// scanner over the results.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/models"
	"github.com/ladderscan/backend/internal/scanner"
	"golang.org/x/sync/errgroup"
)

// Output directory names used by Analyze.
const (
	ConvertedDir = "converted"
	ResultsDir   = "analysis_results"
)

// Options configures a Runner.
type Options struct {
	Strategy ladder.Strategy
	// Workers bounds parallel conversions; <= 0 means GOMAXPROCS.
	Workers  int
	Scanner  *scanner.Scanner
	Observer ladder.Observer
	Logger   *slog.Logger
}

// Runner converts and analyzes directories.
type Runner struct {
	converter *ladder.Converter
	scanner   *scanner.Scanner
	workers   int
	logger    *slog.Logger
}

// FileOutcome reports what happened to one input file.
type FileOutcome struct {
	Input      string
	Output     string // empty when nothing was written
	Conversion *ladder.Conversion
	Err        error
}

// NewRunner returns a runner for the given options.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		scanner: opts.Scanner,
		workers: opts.Workers,
		logger:  opts.Logger,
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.scanner == nil {
		r.scanner = scanner.New(nil)
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}

	copts := []ladder.Option{ladder.WithStrategy(opts.Strategy), ladder.WithLogger(r.logger)}
	if opts.Observer != nil {
		copts = append(copts, ladder.WithObserver(opts.Observer))
	}
	r.converter = ladder.NewConverter(copts...)
	return r
}

// ConvertDirectory converts every *.xml file in in (sorted, not recursive)
// into a .txt file in out. Per-file failures are reported in the outcomes,
// not as an error; only a failing glob, output directory or cancelled
// context stops the batch.
func (r *Runner) ConvertDirectory(ctx context.Context, in, out string) ([]FileOutcome, error) {
	files, err := filepath.Glob(filepath.Join(in, "*.xml"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", in, err)
	}
	sort.Strings(files)

	if len(files) == 0 {
		r.logger.Info("no XML files found", "dir", in)
		return nil, nil
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	outcomes := make([]FileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.convertFile(path, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			r.logger.Error("error processing file", "file", o.Input, "error", o.Err)
		case o.Output != "":
			r.logger.Info("converted", "file", filepath.Base(o.Input), "output", o.Output)
		}
	}
	return outcomes, nil
}

func (r *Runner) convertFile(path, out string) FileOutcome {
	o := FileOutcome{Input: path}

	f, err := os.Open(path)
	if err != nil {
		o.Err = err
		return o
	}
	defer f.Close()

	name := filepath.Base(path)
	conv, err := r.converter.ConvertReader(name, f)
	if err != nil {
		o.Err = err
		return o
	}
	o.Conversion = conv

	if !conv.HasContent() {
		return o
	}
	target := filepath.Join(out, ladder.OutputName(name))
	if err := os.WriteFile(target, []byte(conv.Text()), 0644); err != nil {
		o.Err = fmt.Errorf("writing %s: %w", target, err)
		return o
	}
	o.Output = target
	return o
}

// Report is the outcome of Analyze.
type Report struct {
	Conversions []FileOutcome
	// Results maps converted file names to their scan results.
	Results     map[string][]models.PatternResult
	SummaryPath string // empty when nothing was analyzed
}

// Analyze converts in into outRoot/converted, scans every converted file
// and writes JSON results plus summary.md into outRoot/analysis_results.
func (r *Runner) Analyze(ctx context.Context, in, outRoot string) (*Report, error) {
	convertedDir := filepath.Join(outRoot, ConvertedDir)
	resultsDir := filepath.Join(outRoot, ResultsDir)
	for _, dir := range []string{convertedDir, resultsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	outcomes, err := r.ConvertDirectory(ctx, in, convertedDir)
	if err != nil {
		return nil, err
	}

	texts, err := filepath.Glob(filepath.Join(convertedDir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(texts)

	report := &Report{
		Conversions: outcomes,
		Results:     make(map[string][]models.PatternResult, len(texts)),
	}
	for _, path := range texts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Error("error running analysis", "file", path, "error", err)
			continue
		}
		name := filepath.Base(path)
		report.Results[name] = r.scanner.ScanText(string(data))
		r.logger.Info("analyzed", "file", name, "found", scanner.CountFound(report.Results[name]))
	}

	if len(report.Results) == 0 {
		return report, nil
	}
	if err := scanner.WriteResults(resultsDir, report.Results); err != nil {
		return report, err
	}
	report.SummaryPath = filepath.Join(resultsDir, scanner.SummaryFileName)
	r.logger.Info("summary report generated", "path", report.SummaryPath)
	return report, nil
}
