package model

import (
	"fmt"
	"strings"
	"time"
)

// ManifestFileName is the marker file whose presence qualifies a directory
// under the packages root as an analyzable package.
const ManifestFileName = "pubspec.yaml"

// Package is one independently analyzable unit: a directory directly under
// the packages root that contains a pubspec.yaml.
type Package struct {
	// Name is the directory name. It is the identity used by the skip list,
	// the --only filter and every summary line.
	Name string `json:"name"`

	// Path is the absolute (or root-relative, as given) path to the package
	// directory. It is passed verbatim to the analyzer.
	Path string `json:"path"`
}

// PackageStatus is the outcome of a single package in a run.
type PackageStatus string

const (
	// StatusPassed means the analyzer exited with code 0.
	StatusPassed PackageStatus = "passed"

	// StatusFailed means the analyzer exited non-zero.
	StatusFailed PackageStatus = "failed"

	// StatusSkipped means the package is listed in the skip file and the
	// analyzer was never invoked for it.
	StatusSkipped PackageStatus = "skipped"
)

// String returns the string representation of PackageStatus.
func (s PackageStatus) String() string {
	return string(s)
}

// PackageResult records what happened to one package.
type PackageResult struct {
	Name   string        `json:"name"`
	Status PackageStatus `json:"status"`

	// ExitCode is the analyzer's exit status. Zero for skipped packages.
	ExitCode int `json:"exitCode"`

	// Duration is the wall time spent in the analyzer. Zero for skipped packages.
	Duration time.Duration `json:"durationNs"`
}

// Report is the aggregate of a run. Analyzed, Failed and Skipped keep the
// order in which packages were visited, which is the sorted discovery order.
type Report struct {
	Results  []PackageResult `json:"results"`
	Analyzed []string        `json:"analyzed"`
	Failed   []string        `json:"failed"`
	Skipped  []string        `json:"skipped"`
}

// NewReport returns an empty report whose lists marshal as [] instead of null.
func NewReport() *Report {
	return &Report{
		Results:  []PackageResult{},
		Analyzed: []string{},
		Failed:   []string{},
		Skipped:  []string{},
	}
}

// Record appends a result and updates the name lists that belong to its status.
func (r *Report) Record(res PackageResult) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case StatusSkipped:
		r.Skipped = append(r.Skipped, res.Name)
	case StatusFailed:
		r.Analyzed = append(r.Analyzed, res.Name)
		r.Failed = append(r.Failed, res.Name)
	case StatusPassed:
		r.Analyzed = append(r.Analyzed, res.Name)
	}
}

// ExitCode returns ExitAnalysisFailed if at least one package failed,
// ExitSuccess otherwise. Skipped packages never influence the result.
func (r *Report) ExitCode() ExitCode {
	if len(r.Failed) > 0 {
		return ExitAnalysisFailed
	}
	return ExitSuccess
}

// ExitCode defines the CLI exit codes. Scripts and git hooks rely on
// 0 meaning "every analyzed package is clean" and 1 meaning "at least one
// package failed analysis"; higher codes are environmental faults.
type ExitCode int

const (
	// ExitSuccess indicates no analyzed package failed.
	ExitSuccess ExitCode = 0

	// ExitAnalysisFailed indicates at least one package failed analysis.
	ExitAnalysisFailed ExitCode = 1

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the config or skip file could not be read or parsed.
	ExitConfigError ExitCode = 2

	// ExitPackagesDirError indicates the repo root or packages directory
	// is missing or unreadable.
	ExitPackagesDirError ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 4

	// ExitGitError indicates a git invocation failed.
	ExitGitError ExitCode = 5

	// ExitPackageNotFound indicates a package named with --only does not exist.
	ExitPackageNotFound ExitCode = 6

	// ExitAnalyzerNotFound indicates the analyzer process could not be started.
	ExitAnalyzerNotFound ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Reported marks errors whose details were already written to the user
	// (e.g. the failure summary). Execute only sets the exit code for them.
	Reported bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// AnalysisFailed is returned by the analyze command once the failure summary
// has been printed.
func AnalysisFailed(failed []string) *CLIError {
	return &CLIError{
		Code:     ExitAnalysisFailed,
		Message:  fmt.Sprintf("analysis failed for: %s", strings.Join(failed, ", ")),
		Reported: true,
	}
}
