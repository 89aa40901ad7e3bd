// Package config resolves storage locations and loads the optional YAML
// configuration file.
//
// Configuration is read from the path given by --config, WORKAHOLIC_CONFIG,
// or the XDG config home. A missing file yields Default(); a malformed file
// is an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration for builds, the content source and the
// HTTP server.
type Config struct {
	Origin OriginConfig `yaml:"origin"`
	Cache  CacheConfig  `yaml:"cache"`
	Build  BuildConfig  `yaml:"build"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// OriginConfig selects and configures the remote content origin.
type OriginConfig struct {
	// Kind is "github" or "git".
	Kind    string `yaml:"kind"`
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Ref     string `yaml:"ref"`
	Path    string `yaml:"path"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	// RepoDir is the local checkout used when Kind is "git".
	RepoDir string `yaml:"repo_dir"`
}

// CacheConfig holds the two time constants of the content source.
type CacheConfig struct {
	// MaxAge is the staleness window after which the origin is consulted again.
	MaxAge time.Duration `yaml:"max_age"`
	// TTL is the hard expiry enforced by the store.
	TTL time.Duration `yaml:"ttl"`
	// Timeout bounds each origin request.
	Timeout time.Duration `yaml:"timeout"`
}

// BuildConfig configures the build pipeline plugins.
type BuildConfig struct {
	ImageWidth      int           `yaml:"image_width"`
	Concurrency     int           `yaml:"concurrency"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	ListOrder       []string      `yaml:"list_order"`
	TagField        string        `yaml:"tag_field"`
	PreviewField    string        `yaml:"preview_field"`
	Collections     []string      `yaml:"collections"`
	// Previews enables link preview fetching during builds.
	Previews bool `yaml:"previews"`
	// Summaries derives a missing title and description from the body.
	Summaries bool `yaml:"summaries"`
	// Required lists frontmatter fields every document must set.
	Required []string `yaml:"required"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Origin: OriginConfig{
			Kind: "github",
			Ref:  "main",
			Path: "content/articles",
		},
		Cache: CacheConfig{
			MaxAge:  300 * time.Second,
			TTL:     7 * 24 * time.Hour,
			Timeout: 10 * time.Second,
		},
		Build: BuildConfig{
			ImageWidth:      500,
			DownloadTimeout: 30 * time.Second,
			TagField:        "tags",
			PreviewField:    "url",
			Collections:     []string{"bookmarks", "projects", "snapshots"},
			Previews:        true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path falls
// back to GetConfigPath. The GITHUB_TOKEN environment variable overrides
// any token in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = GetConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.Origin.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the content source cannot run with.
func (c Config) Validate() error {
	switch c.Origin.Kind {
	case "github", "git":
	default:
		return fmt.Errorf("invalid origin kind: %q (valid values: github, git)", c.Origin.Kind)
	}
	if c.Cache.MaxAge <= 0 {
		return errors.New("cache.max_age must be positive")
	}
	if c.Cache.TTL < c.Cache.MaxAge {
		return fmt.Errorf("cache.ttl (%s) must not be shorter than cache.max_age (%s)", c.Cache.TTL, c.Cache.MaxAge)
	}
	if c.Build.ImageWidth <= 0 {
		return errors.New("build.image_width must be positive")
	}
	if c.Build.Concurrency < 0 {
		return errors.New("build.concurrency must not be negative")
	}
	return nil
}
