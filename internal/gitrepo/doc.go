// Package gitrepo locates the repository that analyze-packages operates on.
//
// Git operations are performed via os/exec calls to the git binary, the same
// way the analyzer itself is invoked. Every git call runs with the cleaned
// environment from package cleanenv: when the tool is started from a git hook,
// GIT_DIR and GIT_WORK_TREE would otherwise make `git rev-parse` answer for
// the hook's checkout instead of the directory we ask about.
package gitrepo
