package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/runyaga/flutter/internal/analyzer"
	"github.com/runyaga/flutter/internal/cleanenv"
	"github.com/runyaga/flutter/internal/config"
	"github.com/runyaga/flutter/internal/docker"
	"github.com/runyaga/flutter/internal/model"
	"github.com/runyaga/flutter/internal/runner"
)

// analyzeFlags holds the flags that only the root (analyze) command accepts.
type analyzeFlags struct {
	// analyzer overrides the analyzer command, e.g. "fvm dart".
	analyzer string

	// dockerImage switches to the container backend.
	dockerImage string

	// only restricts the pass to the named packages.
	only []string
}

// runAnalyze performs one analysis pass and turns the report into the
// command's error: nil when every analyzed package passed, a reported
// CLIError with ExitAnalysisFailed otherwise.
func runAnalyze(cmd *cobra.Command, flags *analyzeFlags) error {
	// Step 1: Resolve the repository root, config file and flag overrides.
	ws, err := resolveWorkspace(config.Overrides{
		Analyzer:    flags.analyzer,
		DockerImage: flags.dockerImage,
	})
	if err != nil {
		return err
	}
	VerboseLog("Packages directory: %s", ws.PackagesDir)

	// Step 2: Route the streams. In text mode everything goes where the
	// original tool wrote it: progress and "Skipped:" on stdout, the failure
	// summary on stderr. With --json, stdout must carry only the report, so
	// progress and analyzer chatter move to stderr and the text summaries
	// are dropped (the report contains the same lists).
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	progress, summaryOut, summaryErr := stdout, stdout, stderr
	analyzerOut := stdout
	if jsonOutput {
		progress, analyzerOut = stderr, stderr
		summaryOut, summaryErr = io.Discard, io.Discard
	}

	// Step 3: Pick the backend. Docker problems surface here, before the
	// first "Analyzing" line, rather than as a failure of the first package.
	a, cleanup, err := buildAnalyzer(cmd, ws, analyzerOut, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	// Step 4: Run the pass. Errors here mean the pass could not finish
	// (unreadable packages dir, analyzer missing, interrupted); a package
	// that fails analysis is not an error.
	r := runner.New(a, summaryOut, summaryErr)
	r.Progress = progress

	report, err := r.Execute(cmd.Context(), ws.RepoRoot, ws.PackagesDir, flags.only)
	if err != nil {
		return err
	}

	if jsonOutput {
		printReportJSON(stdout, ws.RepoRoot, report)
	}

	// Step 5: The summary is already printed; AnalysisFailed is marked as
	// reported so Execute only sets the exit code.
	if report.ExitCode() != model.ExitSuccess {
		return model.AnalysisFailed(report.Failed)
	}
	return nil
}

// buildAnalyzer picks the backend from the configuration. The returned
// cleanup func must be called once the pass is over.
func buildAnalyzer(cmd *cobra.Command, ws *workspace, stdout, stderr io.Writer) (analyzer.Analyzer, func(), error) {
	command, leading := ws.Config.AnalyzerCommand()

	// Local backend: the analyzer inherits this process's environment minus
	// the git hook variables.
	if !ws.Config.UsesDocker() {
		VerboseLog("Running analyzer %q locally", command)
		env := cleanenv.Clean(os.Environ())
		return analyzer.NewExec(command, leading, env, stdout, stderr), func() {}, nil
	}

	// Container backend: connect, ping, and make sure the image is present
	// so the pull does not happen inside the first package's run.
	cli, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() { _ = cli.Close() }

	if err := cli.Ping(cmd.Context()); err != nil {
		closeClient()
		return nil, nil, err
	}
	VerboseLog("Connected to Docker daemon")

	if err := docker.EnsureImage(cmd.Context(), cli, ws.Config.DockerImage); err != nil {
		closeClient()
		return nil, nil, err
	}
	VerboseLog("Running analyzer %q in image %s", command, ws.Config.DockerImage)

	// package_config.json written by the host's `pub get` points into the
	// host pub cache, so the container needs it at the same path.
	pubCache := docker.HostPubCache()
	if pubCache == "" {
		log.Warn().Msg("no pub cache found on host; hosted dependencies will not resolve in the container")
	} else {
		VerboseLog("Sharing pub cache %s with the analyzer container", pubCache)
	}

	argv := append([]string{command}, leading...)
	return analyzer.NewContainer(cli, ws.Config.DockerImage, ws.RepoRoot, pubCache, argv, stdout, stderr), closeClient, nil
}

// reportJSON is the --json output of an analysis pass.
type reportJSON struct {
	RepoRoot string       `json:"repoRoot"`
	ExitCode int          `json:"exitCode"`
	Analyzed []string     `json:"analyzed"`
	Failed   []string     `json:"failed"`
	Skipped  []string     `json:"skipped"`
	Results  []resultJSON `json:"results"`
}

type resultJSON struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
}

// newReportJSON converts a report into its JSON shape. Lists are never null.
func newReportJSON(repoRoot string, report *model.Report) reportJSON {
	out := reportJSON{
		RepoRoot: repoRoot,
		ExitCode: int(report.ExitCode()),
		Analyzed: append([]string{}, report.Analyzed...),
		Failed:   append([]string{}, report.Failed...),
		Skipped:  append([]string{}, report.Skipped...),
		Results:  make([]resultJSON, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		out.Results = append(out.Results, resultJSON{
			Name:       res.Name,
			Status:     res.Status.String(),
			ExitCode:   res.ExitCode,
			DurationMs: res.Duration.Milliseconds(),
		})
	}
	return out
}

func printReportJSON(w io.Writer, repoRoot string, report *model.Report) {
	data, _ := json.MarshalIndent(newReportJSON(repoRoot, report), "", "  ")
	fmt.Fprintln(w, string(data))
}
