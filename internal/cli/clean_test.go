package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runyaga/flutter/internal/docker"
	"github.com/runyaga/flutter/internal/model"
)

// fakeCleaner records the calls clean makes and fails removal for the IDs in
// failRemove.
type fakeCleaner struct {
	containers []docker.AnalyzerContainer
	listErr    error
	failRemove map[string]error

	listedRoot string
	removed    []string
}

func (f *fakeCleaner) List(ctx context.Context, repoRoot string) ([]docker.AnalyzerContainer, error) {
	f.listedRoot = repoRoot
	return f.containers, f.listErr
}

func (f *fakeCleaner) Remove(ctx context.Context, containerID string) error {
	if err, ok := f.failRemove[containerID]; ok {
		return err
	}
	f.removed = append(f.removed, containerID)
	return nil
}

func leftovers() []docker.AnalyzerContainer {
	return []docker.AnalyzerContainer{
		{ID: "aaaaaaaaaaaaaaaa", Package: "core", RepoRoot: "/src/app", State: "exited"},
		{ID: "bbbbbbbbbbbbbbbb", Package: "ui", RepoRoot: "/src/app", State: "running"},
		{ID: "cccccccccccccccc", Package: "net", RepoRoot: "/src/app", State: "created"},
	}
}

func TestCleanContainers_RemovesAll(t *testing.T) {
	fake := &fakeCleaner{containers: leftovers()}

	results, err := cleanContainers(context.Background(), fake, "/src/app", false)
	require.NoError(t, err)

	assert.Equal(t, "/src/app", fake.listedRoot)
	assert.Equal(t, []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb", "cccccccccccccccc"}, fake.removed)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Removed, r.ID)
		assert.Empty(t, r.Error)
	}
}

func TestCleanContainers_DryRunRemovesNothing(t *testing.T) {
	fake := &fakeCleaner{containers: leftovers()}

	results, err := cleanContainers(context.Background(), fake, "", true)
	require.NoError(t, err)

	assert.Empty(t, fake.listedRoot, "all repositories")
	assert.Empty(t, fake.removed)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Removed)
	}
}

// TestCleanContainers_RemovalErrorKeepsGoing checks that one failed removal
// neither stops the loop nor hides later failures from the result list, and
// that the first error is what the command returns.
func TestCleanContainers_RemovalErrorKeepsGoing(t *testing.T) {
	first := model.NewCLIError(model.ExitDockerNotRunning, `failed to remove container "aaaaaaaaaaaa"`)
	second := errors.New("conflict")
	fake := &fakeCleaner{
		containers: leftovers(),
		failRemove: map[string]error{
			"aaaaaaaaaaaaaaaa": first,
			"cccccccccccccccc": second,
		},
	}

	results, err := cleanContainers(context.Background(), fake, "/src/app", false)
	require.Error(t, err)
	assert.Same(t, first, err)

	assert.Equal(t, []string{"bbbbbbbbbbbbbbbb"}, fake.removed)
	require.Len(t, results, 3)
	assert.False(t, results[0].Removed)
	assert.Equal(t, first.Error(), results[0].Error)
	assert.True(t, results[1].Removed)
	assert.False(t, results[2].Removed)
	assert.Equal(t, "conflict", results[2].Error)
}

func TestCleanContainers_ListError(t *testing.T) {
	listErr := model.NewCLIError(model.ExitDockerNotRunning, "failed to list Docker containers")
	fake := &fakeCleaner{listErr: listErr}

	results, err := cleanContainers(context.Background(), fake, "/src/app", false)
	assert.Nil(t, results)
	assert.Same(t, listErr, err)
	assert.Empty(t, fake.removed)
}
