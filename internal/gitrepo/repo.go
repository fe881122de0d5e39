package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/cleanenv"
	"github.com/runyaga/flutter/internal/model"
)

// ErrNotRepository is wrapped into the error of a git call made outside any
// working tree.
var ErrNotRepository = errors.New("not a git repository")

// Manager runs git with a fixed environment.
type Manager struct {
	env []string
}

// NewManager creates a Manager whose git invocations use environ with the
// hook variables stripped. Pass os.Environ() in production.
func NewManager(environ []string) *Manager {
	return &Manager{env: cleanenv.Clean(environ)}
}

// GetRepoRoot returns the absolute path to the top-level directory of the
// working tree containing path (`git rev-parse --show-toplevel`).
//
// For a linked worktree this is the worktree root, which is what we want:
// the packages being analyzed are the ones checked out there.
func (m *Manager) GetRepoRoot(path string) (string, error) {
	output, err := m.runGit(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// ResolveRoot picks the repository root for dir: the git top-level if dir is
// inside a working tree, dir itself otherwise.
//
// Only two failures fall back to dir:
//   - dir is not inside a working tree (ErrNotRepository)
//   - git is not installed, so there is nothing to ask
//
// Anything else, for example git refusing a repository owned by another user
// ("detected dubious ownership"), means dir IS a checkout that git cannot
// read. Analyzing dir instead would quietly pick the wrong packages root, so
// the CLIError with ExitGitError is returned.
func (m *Manager) ResolveRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	root, err := m.GetRepoRoot(abs)
	switch {
	case err == nil:
		return root, nil
	case errors.Is(err, ErrNotRepository):
		log.Debug().Str("dir", abs).Msg("not inside a git working tree, using directory as repo root")
		return abs, nil
	case errors.Is(err, exec.ErrNotFound):
		log.Debug().Str("dir", abs).Msg("git not installed, using directory as repo root")
		return abs, nil
	default:
		return "", err
	}
}

// IsWorktree checks whether path is a linked git worktree: its .git entry is
// a file holding a "gitdir:" pointer instead of a directory.
func (m *Manager) IsWorktree(path string) bool {
	gitPath := filepath.Join(path, ".git")

	info, err := os.Lstat(gitPath)
	if err != nil || info.IsDir() {
		return false
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// runGit executes git with the given arguments in repoPath via -C.
// On failure the stderr text is folded into a CLIError with ExitGitError.
func (m *Manager) runGit(repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.Command("git", fullArgs...)
	cmd.Env = m.env

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Fold git's own diagnostic into the message; the exit status alone
		// ("exit status 128") does not say what went wrong.
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}

		// git exits 128 for most fatal errors, so the stderr text is the
		// only way to tell "no repository here" apart from the rest.
		if strings.Contains(stderrStr, "not a git repository") {
			err = fmt.Errorf("%w: %w", ErrNotRepository, err)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}
