package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolated(t *testing.T) *viper.Viper {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return New()
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(isolated(t))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Artifacts.Retention)
	assert.Equal(t, 30*time.Minute, cfg.Artifacts.SweepInterval)
	assert.False(t, cfg.Artifacts.EagerCleanup)
	assert.Equal(t, BackendLocal, cfg.Runner.Backend)
	assert.Equal(t, 1<<20, cfg.Runner.OutputLimit)
	assert.Empty(t, cfg.Storage.DBPath)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.Retention)
	assert.NotEmpty(t, cfg.Artifacts.Root)
}

func TestLoadFileAndEnv(t *testing.T) {
	v := isolated(t)
	yaml := `
server:
  port: 8081
artifacts:
  retention: 2h
  eager_cleanup: true
runner:
  backend: docker
  max_parallel: 4
storage:
  db_path: /var/lib/judge/judge.db
`
	require.NoError(t, os.WriteFile("judge.yaml", []byte(yaml), 0o644))
	t.Setenv("JUDGE_SERVER_PORT", "9000")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Artifacts.Retention)
	assert.True(t, cfg.Artifacts.EagerCleanup)
	assert.Equal(t, BackendDocker, cfg.Runner.Backend)
	assert.Equal(t, int64(4), cfg.Runner.MaxParallel)
	assert.Equal(t, "/var/lib/judge/judge.db", cfg.Storage.DBPath)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	v := isolated(t)
	require.NoError(t, os.WriteFile(filepath.Join(".", "judge.yaml"), []byte("server: [\n"), 0o644))

	_, err := Load(v)
	assert.ErrorContains(t, err, "reading config")
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"unknown backend":   {func(c *Config) { c.Runner.Backend = "k8s" }, "runner.backend"},
		"empty root":        {func(c *Config) { c.Artifacts.Root = "" }, "artifacts.root"},
		"zero retention":    {func(c *Config) { c.Artifacts.Retention = 0 }, "artifacts.retention"},
		"zero interval":     {func(c *Config) { c.Artifacts.SweepInterval = 0 }, "artifacts.sweep_interval"},
		"zero output limit": {func(c *Config) { c.Runner.OutputLimit = 0 }, "runner.output_limit"},
		"negative parallel": {func(c *Config) { c.Runner.MaxParallel = -1 }, "runner.max_parallel"},
		"negative history":  {func(c *Config) { c.Storage.Retention = -time.Hour }, "storage.retention"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(isolated(t))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestEffectiveRetention(t *testing.T) {
	cfg := &Config{Artifacts: ArtifactsConfig{Retention: 10 * time.Second}}

	got, raised := cfg.EffectiveRetention(18 * time.Second)
	assert.True(t, raised)
	assert.Equal(t, 18*time.Second+RetentionMargin, got)
	assert.Greater(t, got, 18*time.Second)

	cfg.Artifacts.Retention = 18 * time.Second
	got, raised = cfg.EffectiveRetention(18 * time.Second)
	assert.True(t, raised, "a window equal to the budget leaves no slack")
	assert.Equal(t, MinRetention(18*time.Second), got)

	cfg.Artifacts.Retention = time.Hour
	got, raised = cfg.EffectiveRetention(18 * time.Second)
	assert.False(t, raised)
	assert.Equal(t, time.Hour, got)
}
