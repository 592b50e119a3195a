// ladder2txt converts PLCopen ladder diagrams to one instruction line per rung.
//
// Every *.xml file in -in is converted to <name>.txt in -out. With -analyze
// the converted files go to <out>/converted, each is checked against the
// pattern catalog, and JSON results plus summary.md are written to
// <out>/analysis_results.
//
// Usage:
//
//	ladder2txt -in <dir> -out <dir> [-analyze] [-strategy trace|positional]
//
// Flags:
//
//	-in        directory of PLCopen XML exports (required)
//	-out       output directory (default "converted")
//	-analyze   also run the pattern scanner
//	-strategy  rung recovery strategy (default "trace")
//	-patterns  YAML pattern catalog replacing the built-in one
//	-workers   parallel conversions (default GOMAXPROCS)
//	-log-level debug, info, warn or error
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ladderscan/backend/internal/batch"
	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/scanner"
)

func main() {
	inDir := flag.String("in", "", "directory of PLCopen XML exports (required)")
	outDir := flag.String("out", "converted", "output directory")
	analyze := flag.Bool("analyze", false, "run the pattern scanner over converted files")
	strategyName := flag.String("strategy", string(ladder.StrategyTrace), "rung recovery strategy: trace or positional")
	patternsFile := flag.String("patterns", "", "YAML pattern catalog (default: built-in)")
	workers := flag.Int("workers", 0, "parallel conversions (default GOMAXPROCS)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "ladder2txt - Convert PLCopen ladder diagrams to instruction text")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *inDir == "" {
		fmt.Fprintln(os.Stderr, "usage: ladder2txt -in <dir> -out <dir> [-analyze] [-strategy trace|positional]")
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, *logLevel, "text")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	strategy, err := ladder.ParseStrategy(*strategyName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var catalog *scanner.Catalog
	if *patternsFile != "" {
		catalog, err = scanner.LoadCatalog(*patternsFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot load patterns:", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(batch.Options{
		Strategy: strategy,
		Workers:  *workers,
		Scanner:  scanner.New(catalog),
		Logger:   logger,
	})

	if !*analyze {
		outcomes, err := runner.ConvertDirectory(ctx, *inDir, *outDir)
		if err != nil {
			logger.Error("conversion failed", "error", err)
			os.Exit(1)
		}
		os.Exit(exitCode(outcomes))
	}

	report, err := runner.Analyze(ctx, *inDir, *outDir)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
	if report.SummaryPath != "" {
		fmt.Printf("Summary report generated: %s\n", report.SummaryPath)
	}
	fmt.Println("Analysis complete!")
	os.Exit(exitCode(report.Conversions))
}

// exitCode is 2 when some file could not be read or written.
func exitCode(outcomes []batch.FileOutcome) int {
	for _, o := range outcomes {
		if o.Err != nil {
			return 2
		}
	}
	return 0
}
