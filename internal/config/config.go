package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sudankdk/judge/internal/sandbox"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ArtifactsConfig struct {
	Root          string        `mapstructure:"root"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	EagerCleanup  bool          `mapstructure:"eager_cleanup"`
}

type RunnerConfig struct {
	Backend     string `mapstructure:"backend"`
	OutputLimit int    `mapstructure:"output_limit"`
	MaxParallel int64  `mapstructure:"max_parallel"`
}

type DockerConfig struct {
	Memory   int64 `mapstructure:"memory"`
	NanoCPUs int64 `mapstructure:"nano_cpus"`
	Network  bool  `mapstructure:"network"`
}

type LanguagesConfig struct {
	File string `mapstructure:"file"`
}

type StorageConfig struct {
	// DBPath is empty when history is disabled.
	DBPath string `mapstructure:"db_path"`
	// Retention of history rows; zero keeps them forever.
	Retention time.Duration `mapstructure:"retention"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Languages LanguagesConfig `mapstructure:"languages"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

const (
	BackendLocal  = "local"
	BackendDocker = "docker"
)

// New returns a viper instance with the judge search paths, env binding and
// defaults applied. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("judge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.judge")

	v.SetEnvPrefix("JUDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("artifacts.root", filepath.Join(os.TempDir(), "judge"))
	v.SetDefault("artifacts.retention", time.Hour)
	v.SetDefault("artifacts.sweep_interval", 30*time.Minute)
	v.SetDefault("artifacts.eager_cleanup", false)
	v.SetDefault("runner.backend", BackendLocal)
	v.SetDefault("runner.output_limit", sandbox.DefaultOutputLimit)
	v.SetDefault("runner.max_parallel", 0)
	v.SetDefault("docker.memory", 256*1024*1024)
	v.SetDefault("docker.nano_cpus", 1_000_000_000)
	v.SetDefault("docker.network", false)
	v.SetDefault("languages.file", "")
	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.retention", 7*24*time.Hour)
	v.SetDefault("log.level", "info")
}

// Load reads the config file if one exists and decodes the result. A missing
// file is not an error; defaults and environment still apply.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Runner.Backend {
	case BackendLocal, BackendDocker:
	default:
		return fmt.Errorf("runner.backend must be %q or %q, got %q", BackendLocal, BackendDocker, c.Runner.Backend)
	}
	if c.Artifacts.Root == "" {
		return errors.New("artifacts.root is required")
	}
	if c.Artifacts.Retention <= 0 {
		return errors.New("artifacts.retention must be positive")
	}
	if c.Artifacts.SweepInterval <= 0 {
		return errors.New("artifacts.sweep_interval must be positive")
	}
	if c.Runner.OutputLimit <= 0 {
		return errors.New("runner.output_limit must be positive")
	}
	if c.Storage.Retention < 0 {
		return errors.New("storage.retention must not be negative")
	}
	if c.Runner.MaxParallel < 0 {
		return errors.New("runner.max_parallel must not be negative")
	}
	return nil
}

// RetentionMargin is added to the longest job budget to cover staging, pipe
// draining after a kill and clock skew between sweeps.
const RetentionMargin = time.Minute

// MinRetention is the shortest window that never reclaims an in-flight job.
func MinRetention(budget time.Duration) time.Duration {
	return budget + RetentionMargin
}

// EffectiveRetention raises the retention window to MinRetention(budget).
func (c *Config) EffectiveRetention(budget time.Duration) (time.Duration, bool) {
	if floor := MinRetention(budget); c.Artifacts.Retention < floor {
		return floor, true
	}
	return c.Artifacts.Retention, false
}
