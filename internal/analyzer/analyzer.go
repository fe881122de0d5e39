// Package analyzer invokes the external Dart analyzer for one package.
//
// Two backends implement Analyzer: Exec runs the analyzer as a local
// subprocess, Container runs it inside a Docker image. Both report a
// non-zero analyzer exit as a failed model.PackageResult, never as an error;
// errors mean the analyzer could not be run at all.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/model"
)

// FatalInfosFlag makes info-level diagnostics fail the analysis.
const FatalInfosFlag = "--fatal-infos"

// AnalyzeArgs are passed to the analyzer before the package path.
var AnalyzeArgs = []string{"analyze", FatalInfosFlag}

// Analyzer analyzes a single package.
type Analyzer interface {
	Analyze(ctx context.Context, pkg model.Package) (model.PackageResult, error)
}

// Exec runs `<Command> [Leading...] analyze --fatal-infos <pkg.Path>` as a
// subprocess and waits for it to finish.
type Exec struct {
	// Command is the analyzer executable, looked up in PATH when not absolute.
	Command string

	// Leading are arguments placed before "analyze" (e.g. "dart" for
	// Command "fvm").
	Leading []string

	// Env is the complete subprocess environment. It is used as given; an
	// empty slice means an empty environment, not an inherited one.
	Env []string

	// Stdout and Stderr receive the analyzer's output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec creates an Exec analyzer. env should already be cleaned.
func NewExec(command string, leading, env []string, stdout, stderr io.Writer) *Exec {
	if env == nil {
		env = []string{}
	}
	return &Exec{
		Command: command,
		Leading: leading,
		Env:     env,
		Stdout:  stdout,
		Stderr:  stderr,
	}
}

// Args returns the full argument list (without the executable) for pkg.
func (e *Exec) Args(pkg model.Package) []string {
	args := make([]string, 0, len(e.Leading)+len(AnalyzeArgs)+1)
	args = append(args, e.Leading...)
	args = append(args, AnalyzeArgs...)
	return append(args, pkg.Path)
}

// Analyze runs the analyzer on pkg.
func (e *Exec) Analyze(ctx context.Context, pkg model.Package) (model.PackageResult, error) {
	args := e.Args(pkg)

	// #nosec G204 -- the executable comes from the operator's flags or config
	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Env = e.Env
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	log.Debug().Str("package", pkg.Name).Str("cmd", e.Command).Strs("args", args).Msg("running analyzer")

	start := time.Now()
	err := cmd.Run()
	result := model.PackageResult{
		Name:     pkg.Name,
		Status:   model.StatusPassed,
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.Status = model.StatusFailed
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	return result, model.WrapCLIError(model.ExitAnalyzerNotFound,
		fmt.Sprintf("failed to start analyzer %q", e.Command), err)
}
