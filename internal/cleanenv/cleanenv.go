// Package cleanenv prepares the environment handed to analyzer and git
// subprocesses.
//
// Git hooks export GIT_DIR and GIT_WORK_TREE pointing at the checkout that
// triggered the hook. Flutter and Dart shell out to git to resolve their own
// version, and with those variables set they read the wrong repository.
package cleanenv

import "strings"

// Stripped lists the variables removed from every subprocess environment.
var Stripped = []string{"GIT_DIR", "GIT_WORK_TREE"}

// Clean returns a copy of environ ("KEY=value" entries, as returned by
// os.Environ) without the Stripped variables. Order is preserved and environ
// is not modified.
func Clean(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if isStripped(key) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isStripped(key string) bool {
	for _, s := range Stripped {
		if key == s {
			return true
		}
	}
	return false
}
