package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultSchema, cfg.SchemaPath)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.False(t, cfg.Store.Persistent())
	assert.Equal(t, DefaultCSRFTTL, cfg.CSRF.TTL)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, "expr", cfg.Rules.Engine)
	assert.True(t, cfg.Activity.Enabled)
	assert.False(t, cfg.Verbose)
}

func TestLoadReadsFileFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
schema: course.yaml
store:
  driver: SQLite
  dsn: file:settings.db
scope:
  tenant_id: acme
record:
  option_name: sfwd_cpt_options
  parent: sfwd_cpt_options
csrf:
  secret: s3cret
  ttl: 2h
nats:
  url: nats://127.0.0.1:4222
  subject_prefix: lms.settings
activity:
  channel: admin
rules:
  engine: CEL
verbose: true
`)
	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "course.yaml", cfg.SchemaPath)
	assert.Equal(t, Store{Driver: "sqlite", DSN: "file:settings.db"}, cfg.Store)
	assert.True(t, cfg.Store.Persistent())
	assert.Equal(t, Scope{TenantID: "acme"}, cfg.Scope)
	assert.Equal(t, "sfwd_cpt_options", cfg.Record.Parent)
	assert.Equal(t, CSRF{Secret: "s3cret", TTL: 2 * time.Hour}, cfg.CSRF)
	assert.Equal(t, NATS{URL: "nats://127.0.0.1:4222", SubjectPrefix: "lms.settings"}, cfg.NATS)
	assert.Equal(t, "admin", cfg.Activity.Channel)
	assert.Equal(t, "cel", cfg.Rules.Engine)
	assert.True(t, cfg.Verbose)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "http:\n  addr: 127.0.0.1:9000\n")
	t.Setenv("SETTINGS_HTTP_ADDR", "0.0.0.0:7000")
	t.Setenv("SETTINGS_SCOPE_NETWORK", "true")
	t.Setenv("SETTINGS_CSRF_TTL", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.HTTP.Addr)
	assert.True(t, cfg.Scope.Network)
	assert.Equal(t, 30*time.Minute, cfg.CSRF.TTL)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown driver": "store:\n  driver: mongo\n",
		"missing dsn":    "store:\n  driver: postgres\n",
		"unknown engine": "rules:\n  engine: lua\n",
		"zero ttl":       "csrf:\n  ttl: 0s\n",
		"bad yaml":       "store: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
