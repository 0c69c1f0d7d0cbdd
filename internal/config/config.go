// Package config loads server configuration from an optional YAML or TOML
// file and the environment.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// Config is the server configuration.
type Config struct {
	Luma     LumaConfig     `yaml:"luma" toml:"luma"`
	Profiles ProfilesConfig `yaml:"profiles" toml:"profiles"`
	Export   ExportConfig   `yaml:"export" toml:"export"`
	Server   ServerConfig   `yaml:"server" toml:"server"`

	// Root is the install root relative paths are resolved against.
	Root string `yaml:"-" toml:"-"`
}

type LumaConfig struct {
	BaseURL          string `yaml:"base_url" toml:"base_url"`
	PublicAPIBaseURL string `yaml:"public_api_base_url" toml:"public_api_base_url"`
	// APIKey seeds the single-profile bootstrap mode.
	APIKey   string `yaml:"api_key" toml:"api_key"`
	MaxPages int    `yaml:"max_pages" toml:"max_pages"`

	// RequestsPerMinute throttles calls per API key; 0 disables it.
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`

	HTTPTimeout    time.Duration `yaml:"-" toml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout" toml:"http_timeout"`
}

type ProfilesConfig struct {
	Path          string `yaml:"path" toml:"path"`
	DSN           string `yaml:"dsn" toml:"dsn"`
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key"`
}

type ExportConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

type ServerConfig struct {
	ToolTimeout    time.Duration `yaml:"-" toml:"-"`
	ToolTimeoutRaw string        `yaml:"tool_timeout" toml:"tool_timeout"`
}

// Default returns the built-in configuration for install root.
func Default(root string) *Config {
	return &Config{
		Root: root,
		Luma: LumaConfig{
			BaseURL:           lumaapi.DefaultBaseURL,
			PublicAPIBaseURL:  lumaapi.DefaultCalendarBaseURL,
			MaxPages:          lumaapi.DefaultMaxPages,
			RequestsPerMinute: 200,
			HTTPTimeoutRaw:    "30s",
		},
		Profiles: ProfilesConfig{
			Path: filepath.Join("config", "calendars.json"),
		},
		Export: ExportConfig{
			Dir: "exports",
		},
		Server: ServerConfig{
			ToolTimeoutRaw: "120s",
		},
	}
}

// InstallRoot returns LUMA_MCP_HOME, else the directory of the executable,
// else the working directory. A binary built by `go run` lives in a
// temporary build directory, so that case also resolves to the working
// directory.
func InstallRoot() string {
	if home := os.Getenv("LUMA_MCP_HOME"); home != "" {
		return home
	}
	exe, _ := os.Executable()
	wd, _ := os.Getwd()
	return installRoot(exe, os.TempDir(), wd)
}

func installRoot(exe, tmpDir, wd string) string {
	if exe != "" && !withinDir(exe, tmpDir) {
		return filepath.Dir(exe)
	}
	if wd != "" {
		return wd
	}
	return "."
}

// withinDir reports whether path lies under dir, after resolving symlinks
// where possible.
func withinDir(path, dir string) bool {
	if dir == "" {
		return false
	}
	resolve := func(p string) string {
		if r, err := filepath.EvalSymlinks(p); err == nil {
			return r
		}
		return filepath.Clean(p)
	}
	rel, err := filepath.Rel(resolve(dir), resolve(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Load builds the configuration: defaults, then the file at path (if any),
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default(InstallRoot())

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := parseDurations(cfg); err != nil {
		return nil, errors.Wrap(err, "parsing durations")
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, c); err != nil {
			return errors.Wrap(err, "parsing config file")
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
			return errors.Wrap(err, "parsing config file")
		}
	default:
		return errors.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the value of the environment variable.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"LUMA_API_KEY":              &c.Luma.APIKey,
		"LUMA_BASE_URL":             &c.Luma.BaseURL,
		"LUMA_PUBLIC_API_BASE_URL":  &c.Luma.PublicAPIBaseURL,
		"LUMA_PROFILES_PATH":        &c.Profiles.Path,
		"LUMA_PROFILES_DSN":         &c.Profiles.DSN,
		"LUMA_EXPORT_DIR":           &c.Export.Dir,
		"CREDENTIAL_ENCRYPTION_KEY": &c.Profiles.EncryptionKey,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func (c *Config) resolvePaths() {
	if c.Profiles.Path != "" && !filepath.IsAbs(c.Profiles.Path) {
		c.Profiles.Path = filepath.Join(c.Root, c.Profiles.Path)
	}
	if c.Export.Dir != "" && !filepath.IsAbs(c.Export.Dir) {
		c.Export.Dir = filepath.Join(c.Root, c.Export.Dir)
	}
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.Luma.HTTPTimeoutRaw != "" {
		cfg.Luma.HTTPTimeout, err = time.ParseDuration(cfg.Luma.HTTPTimeoutRaw)
		if err != nil {
			return errors.Wrapf(err, "parsing http_timeout %q", cfg.Luma.HTTPTimeoutRaw)
		}
	}

	if cfg.Server.ToolTimeoutRaw != "" {
		cfg.Server.ToolTimeout, err = time.ParseDuration(cfg.Server.ToolTimeoutRaw)
		if err != nil {
			return errors.Wrapf(err, "parsing tool_timeout %q", cfg.Server.ToolTimeoutRaw)
		}
	}

	return nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Luma.BaseURL == "" {
		return errors.New("luma.base_url is required")
	}
	if c.Luma.PublicAPIBaseURL == "" {
		return errors.New("luma.public_api_base_url is required")
	}
	if c.Luma.MaxPages <= 0 {
		return errors.New("luma.max_pages must be positive")
	}
	if c.Luma.RequestsPerMinute < 0 {
		return errors.New("luma.requests_per_minute must not be negative")
	}
	if c.Luma.HTTPTimeout <= 0 {
		return errors.New("luma.http_timeout must be positive")
	}
	if c.Server.ToolTimeout <= 0 {
		return errors.New("server.tool_timeout must be positive")
	}
	if c.Profiles.Path == "" && c.Profiles.DSN == "" {
		return errors.New("profiles.path or profiles.dsn is required")
	}
	if c.Export.Dir == "" {
		return errors.New("export.dir is required")
	}
	return nil
}
