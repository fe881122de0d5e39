// clean.go implements the "analyze-packages clean" command.
//
// Analyzer containers are removed as soon as their run finishes. A run that
// is killed hard (SIGKILL, daemon restart) can still leave some behind; clean
// finds them by label and force-removes them.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/runyaga/flutter/internal/config"
	"github.com/runyaga/flutter/internal/docker"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	// allRepos removes analyzer containers of every repository, not only
	// the current one.
	allRepos bool

	// dryRun lists what would be removed without removing it.
	dryRun bool
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover analyzer containers",
		Long: `Remove analyzer containers left behind by interrupted --docker-image runs.

By default only containers created for the current repository are removed.

Examples:
  analyze-packages clean
  analyze-packages clean --all-repos
  analyze-packages clean --dry-run --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.allRepos, "all-repos", false,
		"Remove analyzer containers of every repository")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false,
		"Only list the containers that would be removed")

	return cmd
}

// cleanResult is the outcome for one container.
type cleanResult struct {
	docker.AnalyzerContainer
	Removed bool   `json:"removed"`
	Error   string `json:"error,omitempty"`
}

// containerCleaner is the part of the Docker API that clean needs. The
// production implementation is dockerCleaner; tests substitute a fake so the
// removal loop can be exercised without a daemon.
type containerCleaner interface {
	List(ctx context.Context, repoRoot string) ([]docker.AnalyzerContainer, error)
	Remove(ctx context.Context, containerID string) error
}

// dockerCleaner adapts a docker.Client to containerCleaner.
type dockerCleaner struct {
	cli *docker.Client
}

func (d dockerCleaner) List(ctx context.Context, repoRoot string) ([]docker.AnalyzerContainer, error) {
	return docker.ListAnalyzerContainers(ctx, d.cli, repoRoot)
}

// Remove force-removes the container; a leftover may still be running if
// its run was killed while the analyzer was busy.
func (d dockerCleaner) Remove(ctx context.Context, containerID string) error {
	return docker.RemoveContainer(ctx, d.cli, containerID, true)
}

// runClean is the main logic function for the clean command.
// It resolves which repository to clean, connects to Docker, removes the
// matching containers, and prints one line (or JSON entry) per container.
func runClean(ctx context.Context, w io.Writer, flags *cleanFlags) error {
	// Step 1: Narrow to the current repository unless --all-repos is set.
	// The repo-root label holds the absolute host path, so the root must be
	// resolved exactly the way the analyze command resolves it.
	root := ""
	if !flags.allRepos {
		ws, err := resolveWorkspace(config.Overrides{})
		if err != nil {
			return err
		}
		root = ws.RepoRoot
	}

	// Step 2: Connect to Docker and verify the daemon is available.
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	// Step 3: Remove (or, with --dry-run, only collect) the containers.
	results, err := cleanContainers(ctx, dockerCleaner{cli: cli}, root, flags.dryRun)
	if results == nil {
		return err
	}

	// Step 4: Report every container, including the ones that failed, before
	// returning the first removal error as the command's error.
	if jsonOutput {
		printCleanJSON(w, results)
	} else {
		printCleanText(w, results, flags.dryRun)
	}
	return err
}

// cleanContainers lists the analyzer containers of repoRoot (all
// repositories when empty) and removes them unless dryRun is set.
//
// A failed removal does not stop the loop: the remaining containers are
// still attempted and every outcome is recorded. The first removal error is
// returned alongside the full result list. A listing error returns nil
// results.
func cleanContainers(ctx context.Context, c containerCleaner, repoRoot string, dryRun bool) ([]cleanResult, error) {
	containers, err := c.List(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	VerboseLog("Found %d analyzer containers", len(containers))

	results := make([]cleanResult, 0, len(containers))
	var firstErr error
	for _, ctr := range containers {
		res := cleanResult{AnalyzerContainer: ctr}
		if !dryRun {
			if err := c.Remove(ctx, ctr.ID); err != nil {
				res.Error = err.Error()
				if firstErr == nil {
					firstErr = err
				}
			} else {
				res.Removed = true
			}
		}
		results = append(results, res)
	}
	return results, firstErr
}

func printCleanJSON(w io.Writer, results []cleanResult) {
	type resultJSON struct {
		Containers []cleanResult `json:"containers"`
	}
	data, _ := json.MarshalIndent(resultJSON{Containers: results}, "", "  ")
	fmt.Fprintln(w, string(data))
}

func printCleanText(w io.Writer, results []cleanResult, dryRun bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No analyzer containers found.")
		return
	}

	for _, r := range results {
		id := shortContainerID(r.ID)
		switch {
		case dryRun:
			fmt.Fprintf(w, "Would remove %s (%s, %s)\n", id, r.Package, r.State)
		case r.Removed:
			fmt.Fprintf(w, "Removed %s (%s)\n", id, r.Package)
		default:
			fmt.Fprintf(w, "Failed to remove %s (%s): %s\n", id, r.Package, r.Error)
		}
	}
}

func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
