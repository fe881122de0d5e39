// Package runner drives one analysis pass over a monorepo: load the skip
// list, discover packages, analyze each non-skipped package in sorted order,
// then print the skipped and failed summaries.
//
// Packages are analyzed strictly one after another. An analyzer that exits
// non-zero is recorded as a failure and the pass continues; only errors that
// prevent the analyzer from running at all abort the pass.
package runner

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/analyzer"
	"github.com/runyaga/flutter/internal/model"
	"github.com/runyaga/flutter/internal/skiplist"
	"github.com/runyaga/flutter/internal/workspace"
)

// Runner holds the analyzer and the output streams of a pass.
type Runner struct {
	Analyzer analyzer.Analyzer

	// Progress receives one "Analyzing <name>..." line per analyzed package.
	Progress io.Writer

	// Out receives the "Skipped: ..." summary.
	Out io.Writer

	// Err receives the "Analysis failed for: ..." summary.
	Err io.Writer
}

// New creates a Runner that writes progress and the skipped summary to out
// and the failure summary to errOut.
func New(a analyzer.Analyzer, out, errOut io.Writer) *Runner {
	return &Runner{Analyzer: a, Progress: out, Out: out, Err: errOut}
}

// Execute performs the whole pass for the repository at repoRoot with
// packages under packagesDir. only, when non-empty, restricts the pass to
// the named packages. The returned report decides the exit code.
func (r *Runner) Execute(ctx context.Context, repoRoot, packagesDir string, only []string) (*model.Report, error) {
	skip, err := skiplist.Load(repoRoot)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to load skip list", err)
	}
	log.Debug().Strs("skip", skip.Names()).Msg("skip list loaded")

	pkgs, err := workspace.Discover(packagesDir)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitPackagesDirError, "failed to discover packages", err)
	}
	pkgs, err = workspace.Select(pkgs, only)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("packages", len(pkgs)).Str("dir", packagesDir).Msg("packages discovered")

	report, err := r.Run(ctx, pkgs, skip)
	if err != nil {
		return report, err
	}
	r.PrintSummary(report)
	return report, nil
}

// Run analyzes pkgs in the given order, skipping members of skip.
// On error the partial report is returned alongside it.
func (r *Runner) Run(ctx context.Context, pkgs []model.Package, skip skiplist.Set) (*model.Report, error) {
	report := model.NewReport()

	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if skip.Contains(pkg.Name) {
			report.Record(model.PackageResult{Name: pkg.Name, Status: model.StatusSkipped})
			continue
		}

		fmt.Fprintf(r.Progress, "Analyzing %s...\n", pkg.Name)
		res, err := r.Analyzer.Analyze(ctx, pkg)
		if err != nil {
			return report, err
		}
		report.Record(res)

		log.Debug().
			Str("package", res.Name).
			Str("status", res.Status.String()).
			Int("exit", res.ExitCode).
			Dur("took", res.Duration).
			Msg("package analyzed")
	}

	return report, nil
}

// PrintSummary writes the skipped line (if any) to Out and the failed line
// (if any) to Err.
func (r *Runner) PrintSummary(report *model.Report) {
	if len(report.Skipped) > 0 {
		fmt.Fprintf(r.Out, "Skipped: %s\n", strings.Join(report.Skipped, ", "))
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(r.Err, "\nAnalysis failed for: %s\n", strings.Join(report.Failed, ", "))
	}
}
