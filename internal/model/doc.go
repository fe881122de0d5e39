// Package model defines the domain types and value objects for the
// analyze-packages CLI.
//
// This package contains pure data structures with no external dependencies.
// Packages, per-package results and the run report are transient: they are
// built during one invocation and discarded at exit. There is no state file.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
