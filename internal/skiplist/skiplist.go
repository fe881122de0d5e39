// Package skiplist reads the repository's .dart_analyze_skip file: the list of
// package names that are deliberately excluded from analysis.
//
// File grammar, one entry per line:
//
//	# comment
//	package_name
//	  other_package   <- surrounding whitespace is trimmed
//
// Blank lines and lines whose trimmed form starts with "#" are ignored.
package skiplist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileName is the skip list file name, looked up at the repository root.
const FileName = ".dart_analyze_skip"

// Set is the set of package names to skip. The zero value (nil) is an empty
// set and is safe to query.
type Set map[string]struct{}

// Contains reports whether name is listed in the skip file.
func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members in lexicographic order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads <repoRoot>/.dart_analyze_skip. A missing file (or a path that is
// not a regular file) yields an empty set and no error.
func Load(repoRoot string) (Set, error) {
	path := filepath.Join(repoRoot, FileName)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Set{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	set, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return set, nil
}

// Parse builds a Set from skip file content. Lines may be arbitrarily long;
// a final line without a trailing newline is still read.
func Parse(r io.Reader) (Set, error) {
	set := Set{}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		name := strings.TrimSpace(line)
		if name != "" && !strings.HasPrefix(name, "#") {
			set[name] = struct{}{}
		}

		if err != nil {
			return set, nil
		}
	}
}
