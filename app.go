package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudankdk/judge/internal/artifact"
	"github.com/sudankdk/judge/internal/config"
	"github.com/sudankdk/judge/internal/docker"
	"github.com/sudankdk/judge/internal/executor"
	"github.com/sudankdk/judge/internal/languages"
	"github.com/sudankdk/judge/internal/sandbox"
	"github.com/sudankdk/judge/internal/storage"
	"github.com/sudankdk/judge/internal/storage/sqlite"
)

var flagKeys = map[string]string{
	"log-level": "log.level",
	"backend":   "runner.backend",
	"port":      "server.port",
}

// loadConfig reads configuration with any flags the user set on cmd taking
// precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return config.Load(v)
}

func newLogger(w io.Writer, level string, json bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loadSpecs(cfg *config.Config) ([]languages.Spec, error) {
	if cfg.Languages.File == "" {
		return languages.Defaults(), nil
	}
	return languages.Load(cfg.Languages.File)
}

// app holds everything a command needs to execute submissions.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *artifact.Store
	registry  *languages.Registry
	exec      *executor.Executor
	history   storage.Store
	docker    *docker.Client
	retention time.Duration
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init() error {
	var err error
	if a.store, err = artifact.NewStore(a.cfg.Artifacts.Root); err != nil {
		return err
	}
	specs, err := loadSpecs(a.cfg)
	if err != nil {
		return err
	}

	if a.cfg.Runner.Backend == config.BackendDocker {
		if a.docker, err = docker.New(a.logger); err != nil {
			return err
		}
	}
	if a.registry, err = languages.NewRegistry(specs, a.runnerFactory()); err != nil {
		return err
	}

	retention, raised := a.cfg.EffectiveRetention(a.registry.MaxBudget())
	if raised {
		a.logger.Warn("artifact retention raised above the longest language budget",
			"configured", a.cfg.Artifacts.Retention, "effective", retention)
	}
	a.retention = retention

	if a.cfg.Storage.DBPath != "" {
		history, err := sqlite.Open(a.cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		a.history = history
	}

	opts := executor.Options{
		EagerCleanup: a.cfg.Artifacts.EagerCleanup,
		MaxParallel:  a.cfg.Runner.MaxParallel,
		Logger:       a.logger,
	}
	if a.history != nil {
		opts.Recorder = a.history
	}
	a.exec = executor.NewExecutor(a.registry, a.store, opts)
	return nil
}

func (a *app) runnerFactory() languages.RunnerFactory {
	if a.docker == nil {
		local := sandbox.NewLocalRunner(a.cfg.Runner.OutputLimit)
		return func(languages.Spec) (sandbox.Runner, error) { return local, nil }
	}
	root := a.store.Root()
	return func(spec languages.Spec) (sandbox.Runner, error) {
		if spec.Image == "" {
			return nil, fmt.Errorf("no image configured for the docker backend")
		}
		return a.docker.NewRunner(docker.RunnerConfig{
			Image:       spec.Image,
			Binds:       []string{root + ":" + root},
			Memory:      a.cfg.Docker.Memory,
			NanoCPUs:    a.cfg.Docker.NanoCPUs,
			Network:     a.cfg.Docker.Network,
			OutputLimit: a.cfg.Runner.OutputLimit,
		}), nil
	}
}

// pullImages fetches any language image the docker daemon lacks.
func (a *app) pullImages(ctx context.Context) {
	if a.docker == nil {
		return
	}
	for _, spec := range a.registry.Specs() {
		if err := a.docker.EnsureImage(ctx, spec.Image); err != nil {
			a.logger.Warn("image unavailable", "language", spec.Name, "image", spec.Image, "error", err)
		}
	}
}

func (a *app) sweeper() *artifact.Sweeper {
	sw := artifact.NewSweeper(a.store, a.retention, a.cfg.Artifacts.SweepInterval, a.logger)
	if a.history != nil && a.cfg.Storage.Retention > 0 {
		sw.Add("history", func(ctx context.Context) error {
			n, err := a.history.Prune(ctx, time.Now().Add(-a.cfg.Storage.Retention))
			if n > 0 {
				a.logger.Info("pruned submission history", "rows", n)
			}
			return err
		})
	}
	if a.docker != nil {
		sw.Add("containers", a.docker.SweepContainers)
	}
	return sw
}

func (a *app) Close() error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.docker != nil {
		errs = append(errs, a.docker.Close())
	}
	return errors.Join(errs...)
}

// setup loads config and builds the app for commands that execute code.
func setup(cmd *cobra.Command, jsonLogs bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stderr, cfg.Log.Level, jsonLogs)
	slog.SetDefault(logger)
	return newApp(cfg, logger)
}
