// Package config loads the optional repository configuration file for
// analyze-packages.
//
// The file lives at the repository root and may be written as YAML
// (.dart_analyze.yaml / .dart_analyze.yml) or as JSON with comments
// (.dart_analyze.json). JSONC is handled by github.com/tidwall/jsonc, which
// strips comments and trailing commas before encoding/json decodes it.
//
// Example:
//
//	analyzer: fvm dart
//	packages_dir: packages
//	docker_image: dart:stable
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultAnalyzer is the analyzer executable used when neither a flag nor
// the config file names one.
const DefaultAnalyzer = "dart"

// DefaultPackagesDir is the packages root, relative to the repository root.
const DefaultPackagesDir = "packages"

// FileNames are the candidate config file names, in lookup order.
var FileNames = []string{".dart_analyze.yaml", ".dart_analyze.yml", ".dart_analyze.json"}

// maxConfigSize caps the config file size; anything larger is not a config.
const maxConfigSize = 1 << 20

// Config is the merged configuration for one run.
type Config struct {
	// Analyzer is the analyzer command. It may contain extra leading words
	// (e.g. "fvm dart"); the first word is the executable.
	Analyzer string `yaml:"analyzer,omitempty" json:"analyzer,omitempty"`

	// PackagesDir is the packages root. Relative values are resolved
	// against the repository root.
	PackagesDir string `yaml:"packages_dir,omitempty" json:"packages_dir,omitempty"`

	// DockerImage selects the container backend when non-empty.
	DockerImage string `yaml:"docker_image,omitempty" json:"docker_image,omitempty"`

	// Source is the file the values were read from, empty for defaults.
	Source string `yaml:"-" json:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Analyzer:    DefaultAnalyzer,
		PackagesDir: DefaultPackagesDir,
	}
}

// Load reads the first config file found in repoRoot and fills unset fields
// with defaults. If no file exists it returns Default() and no error.
func Load(repoRoot string) (Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(repoRoot, name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if info.Size() > maxConfigSize {
			return Config{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		cfg, err := parse(path, data)
		if err != nil {
			return Config{}, err
		}
		cfg.Source = path
		return cfg.withDefaults(), nil
	}
	return Default(), nil
}

func parse(path string, data []byte) (Config, error) {
	var cfg Config
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	def := Default()
	if strings.TrimSpace(c.Analyzer) == "" {
		c.Analyzer = def.Analyzer
	}
	if strings.TrimSpace(c.PackagesDir) == "" {
		c.PackagesDir = def.PackagesDir
	}
	return c
}

// Overrides holds values given on the command line. Empty fields leave the
// loaded configuration untouched.
type Overrides struct {
	Analyzer    string
	PackagesDir string
	DockerImage string
}

// Apply returns c with every non-empty override applied.
func (c Config) Apply(o Overrides) Config {
	if o.Analyzer != "" {
		c.Analyzer = o.Analyzer
	}
	if o.PackagesDir != "" {
		c.PackagesDir = o.PackagesDir
	}
	if o.DockerImage != "" {
		c.DockerImage = o.DockerImage
	}
	return c
}

// ResolvePackagesDir returns PackagesDir as an absolute-or-root-joined path.
func (c Config) ResolvePackagesDir(repoRoot string) string {
	if filepath.IsAbs(c.PackagesDir) {
		return filepath.Clean(c.PackagesDir)
	}
	return filepath.Join(repoRoot, c.PackagesDir)
}

// AnalyzerCommand splits Analyzer into the executable and its leading
// arguments.
func (c Config) AnalyzerCommand() (string, []string) {
	fields := strings.Fields(c.Analyzer)
	if len(fields) == 0 {
		return DefaultAnalyzer, nil
	}
	return fields[0], fields[1:]
}

// UsesDocker reports whether analysis runs in a container.
func (c Config) UsesDocker() bool {
	return c.DockerImage != ""
}
