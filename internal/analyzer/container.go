package analyzer

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/runyaga/flutter/internal/docker"
	"github.com/runyaga/flutter/internal/model"
)

// Container runs the analyzer inside a Docker image with the repository root
// mounted read-only at its host path. The host environment is not forwarded
// into the container, so GIT_DIR/GIT_WORK_TREE from a hook cannot reach the
// analyzer.
type Container struct {
	Client   *docker.Client
	Image    string
	RepoRoot string

	// PubCache is the host pub cache shared read-only with the container,
	// so hosted dependencies in package_config.json resolve. Empty for none.
	PubCache string

	// Command is the analyzer executable plus leading arguments as seen
	// inside the image, e.g. ["dart"].
	Command []string

	Stdout io.Writer
	Stderr io.Writer

	now func() time.Time
}

// NewContainer creates a Container analyzer. The image is expected to have
// been pulled already (see docker.EnsureImage).
func NewContainer(cli *docker.Client, image, repoRoot, pubCache string, command []string, stdout, stderr io.Writer) *Container {
	return &Container{
		Client:   cli,
		Image:    image,
		RepoRoot: repoRoot,
		PubCache: pubCache,
		Command:  command,
		Stdout:   stdout,
		Stderr:   stderr,
		now:      time.Now,
	}
}

// Spec returns the container description used for pkg.
func (c *Container) Spec(pkg model.Package) docker.RunSpec {
	return docker.RunSpec{
		Image:       c.Image,
		RepoRoot:    c.RepoRoot,
		PackagePath: pkg.Path,
		PubCache:    c.PubCache,
		Command:     c.Command,
		Args:        AnalyzeArgs,
		Labels:      docker.BuildLabels(pkg.Name, c.RepoRoot, c.now()),
	}
}

// Analyze runs the analyzer container for pkg.
func (c *Container) Analyze(ctx context.Context, pkg model.Package) (model.PackageResult, error) {
	start := time.Now()
	code, err := docker.RunAnalysis(ctx, c.Client, c.Spec(pkg), c.Stdout, c.Stderr)
	result := model.PackageResult{
		Name:     pkg.Name,
		Status:   model.StatusPassed,
		ExitCode: code,
		Duration: time.Since(start),
	}
	if err != nil {
		return result, err
	}
	if code != 0 {
		result.Status = model.StatusFailed
	}
	log.Debug().Str("package", pkg.Name).Int("exit", code).Dur("took", result.Duration).Msg("analyzer container finished")
	return result, nil
}
