// Package cli implements the cobra-based commands of analyze-packages.
//
// The root command performs the analysis pass itself. The list and clean
// subcommands are defined in their own files. This file holds the root
// command, global flags, logging setup and exit-code handling.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/runyaga/flutter/internal/config"
	"github.com/runyaga/flutter/internal/gitrepo"
	"github.com/runyaga/flutter/internal/model"
)

// Global flag variables shared across all subcommands, bound to persistent
// flags on the root command.
var (
	// jsonOutput switches every command to machine-readable JSON on stdout.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// repoRoot overrides repository root detection.
	repoRoot string

	// packagesDir overrides the packages root (relative to repoRoot).
	packagesDir string
)

// version, commit, and date are set at build time via ldflags.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &analyzeFlags{}

	rootCmd := &cobra.Command{
		Use:   "analyze-packages",
		Short: "Run dart analyze --fatal-infos on every package of a monorepo",
		Long: `analyze-packages runs "dart analyze --fatal-infos" on every directory under
<repo>/packages that contains a pubspec.yaml, in name order, one at a time.

Packages listed in <repo>/.dart_analyze_skip (one name per line, "#" comments
allowed) are skipped. GIT_DIR and GIT_WORK_TREE are removed from the
analyzer's environment so the tool behaves the same inside git hooks.

Exit status is 0 when every analyzed package passes and 1 when at least one
fails.

Examples:
  analyze-packages
  analyze-packages --only core,widgets
  analyze-packages --docker-image dart:stable --json`,

		Args: cobra.NoArgs,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&repoRoot, "repo-root", "", "Repository root (default: git top-level of the current directory)")
	pf.StringVar(&packagesDir, "packages-dir", "", "Packages directory, relative to the repo root (default: packages)")

	f := rootCmd.Flags()
	f.StringVar(&flags.analyzer, "analyzer", "", `Analyzer command (default: "dart")`)
	f.StringVar(&flags.dockerImage, "docker-image", "", "Run the analyzer inside this Docker image")
	f.StringSliceVar(&flags.only, "only", nil, "Analyze only these packages (comma-separated)")

	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the code carried
// by the returned error. Errors already reported (the failure summary) are
// not printed again.
func Execute(rootCmd *cobra.Command) {
	os.Exit(run(rootCmd, os.Stderr))
}

// run executes rootCmd and maps its error to an exit code, printing the
// error to errOut unless it was already reported.
func run(rootCmd *cobra.Command, errOut io.Writer) int {
	err := rootCmd.Execute()
	if err == nil {
		return int(model.ExitSuccess)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if !cliErr.Reported {
			printError(errOut, cliErr.Message, cliErr.Err)
		}
		return int(cliErr.Code)
	}

	printError(errOut, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError writes an error to w as "Error: ..." text, or as a JSON object
// when --json is set.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// setupLogging routes zerolog's global logger to w as human-readable console
// output. Only warnings and errors are shown unless verbose is set.
func setupLogging(w io.Writer, verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// VerboseLog emits a debug message, visible only with --verbose.
func VerboseLog(format string, args ...interface{}) {
	log.Debug().Msgf(format, args...)
}

// workspace is the resolved location and configuration of the repository.
type workspace struct {
	RepoRoot    string
	PackagesDir string
	Config      config.Config
}

// resolveWorkspace determines the repository root, loads its config file and
// applies command-line overrides.
func resolveWorkspace(overrides config.Overrides) (*workspace, error) {
	root, err := resolveRepoRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to load configuration", err)
	}
	if cfg.Source != "" {
		VerboseLog("Loaded configuration from %s", cfg.Source)
	}

	overrides.PackagesDir = packagesDir
	cfg = cfg.Apply(overrides)

	return &workspace{
		RepoRoot:    root,
		PackagesDir: cfg.ResolvePackagesDir(root),
		Config:      cfg,
	}, nil
}

// resolveRepoRoot returns --repo-root when given (it must be a directory),
// otherwise the git top-level of the working directory, otherwise the
// working directory itself.
func resolveRepoRoot() (string, error) {
	if repoRoot != "" {
		info, err := os.Stat(repoRoot)
		if err != nil {
			return "", model.WrapCLIError(model.ExitPackagesDirError,
				fmt.Sprintf("repository root %s is not accessible", repoRoot), err)
		}
		if !info.IsDir() {
			return "", model.NewCLIError(model.ExitPackagesDirError,
				fmt.Sprintf("repository root %s is not a directory", repoRoot))
		}
		abs, err := filepath.Abs(repoRoot)
		if err != nil {
			return "", model.WrapCLIError(model.ExitPackagesDirError,
				fmt.Sprintf("cannot resolve repository root %s", repoRoot), err)
		}
		return abs, nil
	}

	git := gitrepo.NewManager(os.Environ())
	cwd, err := os.Getwd()
	if err != nil {
		return "", model.WrapCLIError(model.ExitPackagesDirError, "cannot determine working directory", err)
	}
	root, err := git.ResolveRoot(cwd)
	if err != nil {
		// git failures keep their own exit code (ExitGitError).
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			return "", cliErr
		}
		return "", model.WrapCLIError(model.ExitPackagesDirError, "cannot determine repository root", err)
	}
	if git.IsWorktree(root) {
		VerboseLog("Repository root %s is a linked git worktree", root)
	}
	VerboseLog("Using repository root %s", root)
	return root, nil
}
