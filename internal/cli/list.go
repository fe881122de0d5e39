// list.go implements the "analyze-packages list" command.
//
// The list command shows what a pass would do without running the analyzer:
// every package under the packages root with its skip status and the name
// and version from its pubspec.yaml. With --all, directories that have no
// pubspec.yaml are shown too, marked "ignored".
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/runyaga/flutter/internal/config"
	"github.com/runyaga/flutter/internal/model"
	"github.com/runyaga/flutter/internal/skiplist"
	wsscan "github.com/runyaga/flutter/internal/workspace"
)

// Status values shown in the STATUS column.
const (
	listStatusAnalyze = "analyze"
	listStatusSkip    = "skip"
	listStatusIgnored = "ignored"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	// all includes directories without a pubspec.yaml.
	all bool
}

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the packages a pass would analyze or skip",
		Long: `List every package under the packages directory with its status:
"analyze" or "skip" (named in .dart_analyze_skip). The manifest name and
version are read from each pubspec.yaml.

Examples:
  analyze-packages list
  analyze-packages list --all
  analyze-packages list --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false,
		"Also show directories without a pubspec.yaml")

	return cmd
}

// listEntry is one row of the list output.
type listEntry struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Path     string `json:"path"`
	Manifest string `json:"manifest,omitempty"`
	Version  string `json:"version,omitempty"`
	SDK      string `json:"sdk,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

// runList is the main logic function for the list command. It reads the same
// inputs as an analysis pass (repo root, config, skip file, packages dir) but
// never starts the analyzer.
func runList(w io.Writer, flags *listFlags) error {
	// Step 1: Resolve the workspace exactly as the analyze command does, so
	// both commands agree on which directory is scanned.
	ws, err := resolveWorkspace(config.Overrides{})
	if err != nil {
		return err
	}

	// Step 2: Load the skip list and scan the packages directory. Scan (not
	// Discover) is used so --all can show directories without a manifest.
	skip, err := skiplist.Load(ws.RepoRoot)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to load skip list", err)
	}

	dirs, err := wsscan.Scan(ws.PackagesDir)
	if err != nil {
		return model.WrapCLIError(model.ExitPackagesDirError, "failed to discover packages", err)
	}
	VerboseLog("Found %d directories in %s", len(dirs), ws.PackagesDir)

	// Step 3: Build the rows and point out stale skip entries, which are
	// easy to miss after a package is renamed.
	entries := buildListEntries(dirs, skip, flags.all)
	for _, name := range unmatchedSkips(dirs, skip) {
		VerboseLog("Skip entry %q matches no package", name)
	}

	// Step 4: Output results in the appropriate format.
	if jsonOutput {
		printListJSON(w, ws.PackagesDir, entries)
	} else {
		printListText(w, entries)
	}
	return nil
}

// buildListEntries turns scanned directories into rows. Manifests that fail
// to parse still produce a row, just without name and version.
func buildListEntries(dirs []wsscan.Entry, skip skiplist.Set, all bool) []listEntry {
	entries := make([]listEntry, 0, len(dirs))
	for _, d := range dirs {
		if !d.IsPackage {
			if all {
				entries = append(entries, listEntry{Name: d.Name, Status: listStatusIgnored, Path: d.Path})
			}
			continue
		}

		e := listEntry{Name: d.Name, Status: listStatusAnalyze, Path: d.Path}
		if skip.Contains(d.Name) {
			e.Status = listStatusSkip
		}

		m, err := wsscan.ReadManifest(d.Path)
		if err != nil {
			VerboseLog("Warning: %v", err)
		} else {
			e.Manifest = m.Name
			e.Version = m.Version
			e.SDK = m.SDKConstraint()
			e.Private = m.IsPrivate()
		}
		entries = append(entries, e)
	}
	return entries
}

// unmatchedSkips returns skip-list names that are not a package directory,
// usually left over after a package was renamed or removed.
func unmatchedSkips(dirs []wsscan.Entry, skip skiplist.Set) []string {
	packages := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		if d.IsPackage {
			packages[d.Name] = true
		}
	}

	var missing []string
	for _, name := range skip.Names() {
		if !packages[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func printListJSON(w io.Writer, packagesDir string, entries []listEntry) {
	type resultJSON struct {
		PackagesDir string      `json:"packagesDir"`
		Packages    []listEntry `json:"packages"`
	}

	data, _ := json.MarshalIndent(resultJSON{PackagesDir: packagesDir, Packages: entries}, "", "  ")
	fmt.Fprintln(w, string(data))
}

// printListText writes the rows as an aligned table:
//
//	NAME                 STATUS    MANIFEST             VERSION
//	core                 analyze   core                 1.2.0
//	legacy               skip      legacy               -
func printListText(w io.Writer, entries []listEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No packages found.")
		return
	}

	fmt.Fprintf(w, "%-20s %-9s %-20s %s\n", "NAME", "STATUS", "MANIFEST", "VERSION")
	for _, e := range entries {
		fmt.Fprintf(w, "%-20s %-9s %-20s %s\n",
			e.Name, e.Status, orDash(e.Manifest), orDash(e.Version))
	}
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
