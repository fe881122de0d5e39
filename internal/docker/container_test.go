package docker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runyaga/flutter/internal/model"
)

func TestContainerPath(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		hostPath string
		want     string
		wantErr  bool
	}{
		{"package under packages", "/src/app", "/src/app/packages/core", "/src/app/packages/core", false},
		{"root itself", "/src/app", "/src/app", "/src/app", false},
		{"unclean path", "/src/app/", "/src/app/packages/../packages/ui", "/src/app/packages/ui", false},
		{"outside root", "/src/app", "/src/other/pkg", "", true},
		{"sibling with common prefix", "/src/app", "/src/app-legacy/pkg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ContainerPath(tt.root, tt.hostPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestBuildContainerConfig checks that the repository and the pub cache are
// both mounted read-only at their host paths, so absolute file URIs in a
// host-generated package_config.json resolve inside the container.
func TestBuildContainerConfig(t *testing.T) {
	labels := map[string]string{LabelManagedBy: ManagedByValue}
	cfg, hostCfg, err := BuildContainerConfig(RunSpec{
		Image:       "dart:stable",
		RepoRoot:    "/src/app",
		PackagePath: "/src/app/packages/core",
		PubCache:    "/home/dev/.pub-cache",
		Command:     []string{"dart"},
		Args:        []string{"analyze", "--fatal-infos"},
		Labels:      labels,
	})
	require.NoError(t, err)

	assert.Equal(t, "dart:stable", cfg.Image)
	assert.Equal(t, []string{"dart", "analyze", "--fatal-infos", "/src/app/packages/core"}, []string(cfg.Cmd))
	assert.Equal(t, "/src/app", cfg.WorkingDir)
	assert.Equal(t, labels, cfg.Labels)
	assert.Equal(t, []string{"PUB_CACHE=/home/dev/.pub-cache"}, cfg.Env, "only PUB_CACHE is set")

	require.Len(t, hostCfg.Mounts, 2)
	assert.Equal(t, mount.Mount{
		Type:     mount.TypeBind,
		Source:   "/src/app",
		Target:   "/src/app",
		ReadOnly: true,
	}, hostCfg.Mounts[0])
	assert.Equal(t, mount.Mount{
		Type:     mount.TypeBind,
		Source:   "/home/dev/.pub-cache",
		Target:   "/home/dev/.pub-cache",
		ReadOnly: true,
	}, hostCfg.Mounts[1])
}

func TestBuildContainerConfig_NoPubCache(t *testing.T) {
	cfg, hostCfg, err := BuildContainerConfig(RunSpec{
		Image:       "dart:stable",
		RepoRoot:    "/src/app",
		PackagePath: "/src/app/packages/core",
		Command:     []string{"dart"},
	})
	require.NoError(t, err)

	assert.Empty(t, cfg.Env, "host environment is never forwarded")
	require.Len(t, hostCfg.Mounts, 1)
	assert.Equal(t, "/src/app", hostCfg.Mounts[0].Target)
}

func TestBuildContainerConfig_PubCacheInsideRepo(t *testing.T) {
	cfg, hostCfg, err := BuildContainerConfig(RunSpec{
		Image:       "dart:stable",
		RepoRoot:    "/src/app",
		PackagePath: "/src/app/packages/core",
		PubCache:    "/src/app/.pub-cache",
		Command:     []string{"dart"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"PUB_CACHE=/src/app/.pub-cache"}, cfg.Env)
	assert.Len(t, hostCfg.Mounts, 1, "cache is visible through the repository mount")
}

func TestPubCacheDir(t *testing.T) {
	assert.Equal(t, "/opt/pub", pubCacheDir("/opt/pub", "/home/dev"))
	assert.Equal(t, filepath.Join("/home/dev", ".pub-cache"), pubCacheDir("", "/home/dev"))
	assert.Empty(t, pubCacheDir("", ""))
}

func TestHostPubCache(t *testing.T) {
	t.Run("PUB_CACHE directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(PubCacheEnv, dir)
		assert.Equal(t, dir, HostPubCache())
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Setenv(PubCacheEnv, filepath.Join(t.TempDir(), "absent"))
		assert.Empty(t, HostPubCache())
	})
}

func TestContainerError(t *testing.T) {
	t.Run("cancelled run is not a daemon failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := containerError(ctx, "failed waiting for analyzer container abc", context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)

		var cliErr *model.CLIError
		assert.False(t, errors.As(err, &cliErr))
	})

	t.Run("live context maps to docker error", func(t *testing.T) {
		err := containerError(context.Background(), "failed to start analyzer container abc", errors.New("boom"))

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitDockerNotRunning, cliErr.Code)
		assert.Contains(t, cliErr.Error(), "boom")
	})
}

func TestBuildContainerConfig_Invalid(t *testing.T) {
	base := RunSpec{
		Image:       "dart:stable",
		RepoRoot:    "/src/app",
		PackagePath: "/src/app/packages/core",
		Command:     []string{"dart"},
	}

	noImage := base
	noImage.Image = ""
	_, _, err := BuildContainerConfig(noImage)
	assert.Error(t, err)

	noCmd := base
	noCmd.Command = nil
	_, _, err = BuildContainerConfig(noCmd)
	assert.Error(t, err)

	outside := base
	outside.PackagePath = "/tmp/pkg"
	_, _, err = BuildContainerConfig(outside)
	assert.Error(t, err)
}

func TestSummaryToContainer(t *testing.T) {
	labels := BuildLabels("core", "/src/app", mustTime(t, "2026-10-19T07:30:00Z"))

	info, err := summaryToContainer(container.Summary{
		ID:     "0123456789abcdef0123",
		Names:  []string{"/eager_turing"},
		State:  "exited",
		Labels: labels,
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123", info.ID)
	assert.Equal(t, "eager_turing", info.Name)
	assert.Equal(t, "exited", info.State)
	assert.Equal(t, "core", info.Package)

	_, err = summaryToContainer(container.Summary{ID: "x", Labels: map[string]string{}})
	assert.Error(t, err)
}

func TestDetectUnixSocket(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "docker.sock")
	require.NoError(t, os.WriteFile(present, nil, 0600))

	host, err := detectUnixSocket([]string{filepath.Join(dir, "missing.sock"), present})
	require.NoError(t, err)
	assert.Equal(t, "unix://"+present, host)

	_, err = detectUnixSocket([]string{filepath.Join(dir, "missing.sock")})
	assert.Error(t, err)
}

func TestDetectDockerHost_UnsupportedPlatform(t *testing.T) {
	_, err := detectDockerHost("plan9")
	assert.ErrorContains(t, err, "unsupported platform")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
