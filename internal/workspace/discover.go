// Package workspace discovers the analyzable packages of a monorepo.
//
// A package is a directory directly under the packages root that contains a
// pubspec.yaml. Directories without one are excluded silently: they are
// usually asset folders or scratch space, not something the analyzer can
// work on.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/model"
)

// Entry is one directory directly under the packages root.
type Entry struct {
	Name string
	Path string

	// IsPackage is true when the directory contains a pubspec.yaml.
	IsPackage bool
}

// Scan lists the directories of packagesDir, sorted by name, and marks the
// ones that qualify as packages. Plain files are not returned.
func Scan(packagesDir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(packagesDir)
	if err != nil {
		return nil, fmt.Errorf("listing packages in %s: %w", packagesDir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(packagesDir, name)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: name, Path: path, IsPackage: HasManifest(path)})
	}
	return entries, nil
}

// Discover returns the packages under packagesDir sorted by directory name.
// It fails only when packagesDir itself cannot be read.
func Discover(packagesDir string) ([]model.Package, error) {
	entries, err := Scan(packagesDir)
	if err != nil {
		return nil, err
	}

	pkgs := make([]model.Package, 0, len(entries))
	for _, e := range entries {
		if !e.IsPackage {
			log.Debug().Str("dir", e.Path).Msg("no pubspec.yaml, not a package")
			continue
		}
		pkgs = append(pkgs, model.Package{Name: e.Name, Path: e.Path})
	}
	return pkgs, nil
}

// HasManifest reports whether dir directly contains a regular pubspec.yaml.
// Symlinks are followed, so a linked manifest still counts.
func HasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, model.ManifestFileName))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Select returns the packages whose names are listed in only, preserving the
// discovery order. An empty only returns pkgs unchanged. Names that match no
// package are reported with ExitPackageNotFound.
func Select(pkgs []model.Package, only []string) ([]model.Package, error) {
	if len(only) == 0 {
		return pkgs, nil
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}

	selected := make([]model.Package, 0, len(only))
	for _, p := range pkgs {
		if wanted[p.Name] {
			selected = append(selected, p)
			delete(wanted, p.Name)
		}
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, model.NewCLIError(model.ExitPackageNotFound,
			fmt.Sprintf("no package with a %s named: %v", model.ManifestFileName, missing))
	}
	return selected, nil
}
