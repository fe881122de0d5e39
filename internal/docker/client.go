package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/model"
)

// defaultPingTimeout bounds the initial daemon health check. Docker Desktop
// on macOS can take a few seconds to answer after waking up.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client with socket auto-detection.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	// inner is the underlying Docker SDK client. It is wrapped rather than
	// embedded so the rest of the module goes through the helpers in this
	// package, which translate SDK errors into CLIErrors with exit codes.
	inner *client.Client
}

// NewClient creates a Docker client. DOCKER_HOST wins when set; otherwise the
// platform's default socket locations are checked in order:
//   - Linux: /var/run/docker.sock
//   - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//   - Windows: npipe:////./pipe/docker_engine
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is found.
func NewClient() (*Client, error) {
	// Step 1: An explicit DOCKER_HOST wins unconditionally (remote daemons,
	// rootless Docker, Colima, Podman's compatibility socket). The SDK
	// parses the URI itself.
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return newClientWithHost(host)
	}

	// Step 2: Check the platform's well-known socket locations.
	host, err := detectDockerHost(runtime.GOOS)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
	}
	return newClientWithHost(host)
}

// newClientWithHost creates the SDK client for host.
//
// API version negotiation lets one binary talk to older daemons: the client
// downgrades to the daemon's API version on the first request instead of
// failing with "client version is too new".
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host), err)
	}
	log.Debug().Str("host", host).Msg("docker client created")
	return &Client{inner: c}, nil
}

// detectDockerHost returns the Docker host URI for goos.
func detectDockerHost(goos string) (string, error) {
	switch goos {
	case "linux":
		// Rootless setups export DOCKER_HOST, which NewClient already honored.
		return detectUnixSocket([]string{"/var/run/docker.sock"})

	case "darwin":
		// Docker Desktop symlinks /var/run/docker.sock only when allowed to
		// use privileged helpers; newer versions always create the per-user
		// socket under ~/.docker/run.
		paths := []string{"/var/run/docker.sock"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".docker", "run", "docker.sock"))
		}
		return detectUnixSocket(paths)

	case "windows":
		// os.Stat does not work on named pipes; a short dial does.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err != nil {
			return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)
		}
		_ = conn.Close()
		return "npipe://" + pipePath, nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", goos)
	}
}

// detectUnixSocket returns the URI of the first existing socket in paths.
//
// Design note: only the socket file's existence is checked here, not whether
// a daemon listens on it. A stale socket left by a stopped Docker Desktop
// still passes; the subsequent Ping then fails with a clear "is Docker
// running?" message instead of a confusing dial error from deep inside the
// first real API call.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon answers within defaultPingTimeout.
//
// Every command that needs Docker pings first, so an unreachable daemon is
// reported once, up front, with ExitDockerNotRunning, rather than as a
// failure of whichever package happened to be analyzed first.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)", err)
	}
	return nil
}

// Close releases the client's resources. It is safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the SDK client for calls not wrapped by this package.
func (c *Client) Inner() *client.Client {
	return c.inner
}
