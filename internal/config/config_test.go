package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

func clearEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"LUMA_API_KEY", "LUMA_BASE_URL", "LUMA_PUBLIC_API_BASE_URL", "LUMA_PROFILES_PATH",
		"LUMA_PROFILES_DSN", "LUMA_EXPORT_DIR", "CREDENTIAL_ENCRYPTION_KEY",
	} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	t.Setenv("LUMA_MCP_HOME", root)
	return root
}

func TestLoadDefaults(t *testing.T) {
	root := clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, lumaapi.DefaultBaseURL, cfg.Luma.BaseURL)
	assert.Equal(t, lumaapi.DefaultCalendarBaseURL, cfg.Luma.PublicAPIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.Luma.HTTPTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.ToolTimeout)
	assert.Equal(t, 1000, cfg.Luma.MaxPages)
	assert.Equal(t, 200, cfg.Luma.RequestsPerMinute)
	assert.Equal(t, filepath.Join(root, "config", "calendars.json"), cfg.Profiles.Path)
	assert.Equal(t, filepath.Join(root, "exports"), cfg.Export.Dir)
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	root := clearEnv(t)
	t.Setenv("TEST_LUMA_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
luma:
  api_key: ${TEST_LUMA_KEY}
  http_timeout: 5s
  max_pages: 20
profiles:
  path: data/profiles.json
export:
  dir: /var/exports
server:
  tool_timeout: 1m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Luma.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Luma.HTTPTimeout)
	assert.Equal(t, time.Minute, cfg.Server.ToolTimeout)
	assert.Equal(t, 20, cfg.Luma.MaxPages)
	assert.Equal(t, filepath.Join(root, "data", "profiles.json"), cfg.Profiles.Path)
	assert.Equal(t, "/var/exports", cfg.Export.Dir)
	assert.Equal(t, lumaapi.DefaultBaseURL, cfg.Luma.BaseURL, "unset keys keep defaults")
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[luma]
base_url = "http://localhost:9999"

[profiles]
dsn = "postgres://localhost/luma"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Luma.BaseURL)
	assert.Equal(t, "postgres://localhost/luma", cfg.Profiles.DSN)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUMA_BASE_URL", "http://override")
	t.Setenv("LUMA_EXPORT_DIR", "/tmp/out")

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("luma:\n  base_url: http://file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override", cfg.Luma.BaseURL)
	assert.Equal(t, "/tmp/out", cfg.Export.Dir)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad duration", "a.yaml", "luma:\n  http_timeout: soon\n"},
		{"bad yaml", "b.yaml", "luma: [\n"},
		{"negative pages", "c.yaml", "luma:\n  max_pages: -1\n"},
		{"negative rate limit", "c.yaml", "luma:\n  requests_per_minute: -5\n"},
		{"unknown format", "d.json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestInstallRootFallsBackToWorkingDirectory(t *testing.T) {
	root := string(filepath.Separator)
	tmp := filepath.Join(root, "luma-test-tmp")
	wd := filepath.Join(root, "home", "me", "project")
	installed := filepath.Join(root, "opt", "luma", "luma-mcp-server")

	tests := []struct {
		name string
		exe  string
		wd   string
		want string
	}{
		{"installed binary", installed, wd, filepath.Join(root, "opt", "luma")},
		{"go run build dir", filepath.Join(tmp, "go-build123", "b001", "exe", "server"), wd, wd},
		{"sibling of temp dir", filepath.Join(root, "luma-test-tmp-other", "server"), wd, filepath.Join(root, "luma-test-tmp-other")},
		{"no executable", "", wd, wd},
		{"nothing known", "", "", "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, installRoot(tt.exe, tmp, tt.wd))
		})
	}
}
