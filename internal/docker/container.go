// container.go runs `dart analyze` inside a throwaway container and manages
// the containers this tool leaves behind.
//
// One container is created per package. The repository root is bind-mounted
// read-only at its own host path, not at a fixed directory. `dart pub get`
// on the host writes .dart_tool/package_config.json with absolute file URIs
// (hosted packages live in the pub cache, path dependencies point at sibling
// packages); those URIs only resolve inside the container when every
// directory they name appears at the same location. For the same reason the
// host pub cache is mounted read-only at its own path and advertised through
// PUB_CACHE.
//
// Lifecycle of one analysis container:
//  1. ContainerCreate with labels (see label.go) and the two bind mounts
//  2. ContainerWait registered before start, so a fast exit is not missed
//  3. ContainerStart, then follow the multiplexed log stream via stdcopy
//  4. read the exit code from the wait channel
//  5. force-remove the container, even when the run was interrupted
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/model"
)

// PubCacheEnv is the variable Dart reads to locate the pub cache. It is the
// only environment variable set inside an analyzer container.
const PubCacheEnv = "PUB_CACHE"

// RunSpec describes one analyzer container.
type RunSpec struct {
	// Image is the image reference, e.g. "dart:stable".
	Image string

	// RepoRoot is the host directory bind-mounted at the same path.
	RepoRoot string

	// PackagePath is the host path of the package; it must be inside RepoRoot.
	PackagePath string

	// PubCache is the host pub cache directory. When non-empty it is mounted
	// read-only at the same path and exported as PUB_CACHE. Leave it empty
	// when the host has no pub cache.
	PubCache string

	// Command is the analyzer executable plus leading arguments, e.g. ["dart"].
	Command []string

	// Args are appended after Command, e.g. ["analyze", "--fatal-infos"].
	// The package path is appended after them.
	Args []string

	// Labels are applied to the container.
	Labels map[string]string
}

// ContainerPath returns where hostPath appears inside the container. Since
// the repository is mounted at its own path this is the cleaned host path
// itself; the call fails when hostPath lies outside repoRoot and would
// therefore not be visible at all.
func ContainerPath(repoRoot, hostPath string) (string, error) {
	if !isWithin(repoRoot, hostPath) {
		return "", fmt.Errorf("package path %s is not under %s", hostPath, repoRoot)
	}
	return filepath.ToSlash(filepath.Clean(hostPath)), nil
}

// isWithin reports whether path is root or lies below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// HostPubCache returns the pub cache directory of the host: $PUB_CACHE when
// set, otherwise ~/.pub-cache. It returns "" when that directory does not
// exist, in which case the container runs without it.
func HostPubCache() string {
	home, _ := os.UserHomeDir()
	dir := pubCacheDir(os.Getenv(PubCacheEnv), home)
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Debug().Str("dir", dir).Msg("no pub cache on host, not mounting one")
		return ""
	}
	return dir
}

// pubCacheDir resolves the pub cache location from PUB_CACHE and the home
// directory, without touching the file system.
func pubCacheDir(env, home string) string {
	if env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".pub-cache")
}

// BuildContainerConfig turns a RunSpec into the SDK's create parameters.
//
// The host environment is never forwarded. In particular GIT_DIR and
// GIT_WORK_TREE from a git hook cannot reach the analyzer; the container
// sees only the image's own environment plus PUB_CACHE.
func BuildContainerConfig(spec RunSpec) (*container.Config, *container.HostConfig, error) {
	if spec.Image == "" {
		return nil, nil, errors.New("container image must not be empty")
	}
	if len(spec.Command) == 0 {
		return nil, nil, errors.New("analyzer command must not be empty")
	}

	pkgPath, err := ContainerPath(spec.RepoRoot, spec.PackagePath)
	if err != nil {
		return nil, nil, err
	}
	root := filepath.ToSlash(filepath.Clean(spec.RepoRoot))

	cmd := make([]string, 0, len(spec.Command)+len(spec.Args)+1)
	cmd = append(cmd, spec.Command...)
	cmd = append(cmd, spec.Args...)
	cmd = append(cmd, pkgPath)

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          cmd,
		WorkingDir:   root,
		Labels:       spec.Labels,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   spec.RepoRoot,
			Target:   root,
			ReadOnly: true,
		}},
	}

	if spec.PubCache != "" {
		cache := filepath.ToSlash(filepath.Clean(spec.PubCache))
		cfg.Env = []string{PubCacheEnv + "=" + cache}

		// A cache inside the repository is already visible through the
		// repository mount; Docker rejects a second mount of the same target.
		if !isWithin(spec.RepoRoot, spec.PubCache) {
			hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
				Type:     mount.TypeBind,
				Source:   spec.PubCache,
				Target:   cache,
				ReadOnly: true,
			})
		}
	}
	return cfg, hostCfg, nil
}

// containerError classifies a failed Docker call made on behalf of a run.
// When ctx has been cancelled (Ctrl-C) the context error is returned as is,
// so the interruption is not misreported as an unreachable daemon.
func containerError(ctx context.Context, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return model.WrapCLIError(model.ExitDockerNotRunning, message, err)
}

// EnsureImage pulls ref unless the daemon already has it.
func EnsureImage(ctx context.Context, cli *Client, ref string) error {
	if _, err := cli.Inner().ImageInspect(ctx, ref); err == nil {
		return nil
	} else if !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect image %q", ref), err)
	}

	log.Info().Str("image", ref).Msg("pulling analyzer image")
	rc, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return containerError(ctx, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	defer func() { _ = rc.Close() }()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return containerError(ctx, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	return nil
}

// RunAnalysis creates the container described by spec, streams its output to
// stdout/stderr, waits for it to exit and removes it. It returns the
// container's exit code. Errors are reserved for Docker failures; a non-zero
// exit code is not an error.
func RunAnalysis(ctx context.Context, cli *Client, spec RunSpec, stdout, stderr io.Writer) (int, error) {
	cfg, hostCfg, err := BuildContainerConfig(spec)
	if err != nil {
		return 0, err
	}

	created, err := cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return 0, containerError(ctx,
			fmt.Sprintf("failed to create analyzer container from %q", spec.Image), err)
	}
	id := created.ID
	log.Debug().Str("container", shortID(id)).Strs("cmd", cfg.Cmd).Msg("analyzer container created")

	defer func() {
		// Removal must happen even if ctx was cancelled mid-run.
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := RemoveContainer(rmCtx, cli, id, true); err != nil {
			log.Warn().Err(err).Str("container", shortID(id)).Msg("could not remove analyzer container")
		}
	}()

	// Register the wait before starting so a fast exit is not missed.
	statusCh, errCh := cli.Inner().ContainerWait(ctx, id, container.WaitConditionNextExit)

	if err := cli.Inner().ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, containerError(ctx,
			fmt.Sprintf("failed to start analyzer container %s", shortID(id)), err)
	}

	logs, err := cli.Inner().ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return 0, containerError(ctx,
			fmt.Sprintf("failed to attach to analyzer container %s", shortID(id)), err)
	}
	defer func() { _ = logs.Close() }()

	// StdCopy returns when the container exits (the daemon closes the
	// stream) or when ctx is cancelled. Only the former is worth a warning.
	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		log.Warn().Err(err).Str("container", shortID(id)).Msg("analyzer output stream interrupted")
	}

	// The wait was registered before start, so exactly one of the two
	// channels delivers. A cancelled ctx surfaces on errCh.
	select {
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return 0, model.NewCLIError(model.ExitDockerNotRunning,
				fmt.Sprintf("analyzer container %s: %s", shortID(id), status.Error.Message))
		}
		return int(status.StatusCode), nil
	case err := <-errCh:
		return 0, containerError(ctx,
			fmt.Sprintf("failed waiting for analyzer container %s", shortID(id)), err)
	}
}

// ListAnalyzerContainers returns all containers (running or not) labelled as
// analyzer containers. A non-empty repoRoot narrows the list to that checkout.
func ListAnalyzerContainers(ctx context.Context, cli *Client, repoRoot string) ([]AnalyzerContainer, error) {
	args := filters.NewArgs()
	for _, sel := range FilterLabels(repoRoot) {
		args.Add("label", sel)
	}

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]AnalyzerContainer, 0, len(containers))
	for _, c := range containers {
		info, err := summaryToContainer(c)
		if err != nil {
			log.Debug().Err(err).Str("container", shortID(c.ID)).Msg("ignoring container with malformed labels")
			continue
		}
		result = append(result, *info)
	}
	return result, nil
}

// summaryToContainer converts a daemon listing entry into an AnalyzerContainer.
// Docker reports names with a leading "/", which is stripped.
func summaryToContainer(c container.Summary) (*AnalyzerContainer, error) {
	info, err := ParseLabels(c.Labels)
	if err != nil {
		return nil, err
	}
	info.ID = c.ID
	info.State = string(c.State)
	if len(c.Names) > 0 {
		info.Name = strings.TrimPrefix(c.Names[0], "/")
	}
	return info, nil
}

// RemoveContainer removes a container; force kills it first if running.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", shortID(containerID)), err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
