package docker

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Label keys put on every analyzer container. They are the only record of
// which containers belong to this tool; nothing is written to disk.
//
// All keys share the "dart-analyze." prefix so they do not collide with
// labels set by other tools.
const (
	// LabelPrefix is the common prefix for all analyzer labels.
	LabelPrefix = "dart-analyze."

	// LabelManagedBy identifies containers created by analyze-packages.
	// Key: "dart-analyze.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelPackage stores the package directory name being analyzed.
	LabelPackage = LabelPrefix + "package"

	// LabelRepoRoot stores the host path bind-mounted as the workspace.
	LabelRepoRoot = LabelPrefix + "repo-root"

	// LabelStartedAt stores the RFC3339 UTC creation timestamp.
	LabelStartedAt = LabelPrefix + "started-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "analyze-packages"

// AnalyzerContainer is an analyzer container as reconstructed from its labels
// plus the runtime fields reported by the daemon.
type AnalyzerContainer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Package   string    `json:"package"`
	RepoRoot  string    `json:"repoRoot"`
	StartedAt time.Time `json:"startedAt"`
}

// BuildLabels returns the label map for an analyzer container.
func BuildLabels(pkgName, repoRoot string, startedAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelPackage:   pkgName,
		LabelRepoRoot:  repoRoot,
		LabelStartedAt: startedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels is the inverse of BuildLabels. All labels must be present and
// LabelManagedBy must carry ManagedByValue. ID, Name and State are left for
// the caller to fill from the daemon's response.
func ParseLabels(labels map[string]string) (*AnalyzerContainer, error) {
	required := []string{LabelManagedBy, LabelPackage, LabelRepoRoot, LabelStartedAt}

	var missing []string
	for _, key := range required {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	startedAt, err := time.Parse(time.RFC3339, labels[LabelStartedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelStartedAt, err)
	}

	return &AnalyzerContainer{
		Package:   labels[LabelPackage],
		RepoRoot:  labels[LabelRepoRoot],
		StartedAt: startedAt,
	}, nil
}

// FilterLabels returns the label selectors that identify analyzer containers,
// formatted "key=value" for filters.Arg("label", ...). When repoRoot is
// non-empty the selection is narrowed to that repository.
func FilterLabels(repoRoot string) []string {
	selectors := []string{LabelManagedBy + "=" + ManagedByValue}
	if repoRoot != "" {
		selectors = append(selectors, LabelRepoRoot+"="+repoRoot)
	}
	sort.Strings(selectors)
	return selectors
}
