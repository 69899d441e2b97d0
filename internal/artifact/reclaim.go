package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type ReclaimStats struct {
	Scanned int
	Removed int
	Failed  int
}

// Reclaim deletes artifacts whose modification time is older than maxAge. It
// decides by age alone, so maxAge must exceed the longest compile+run budget
// with room to spare (see config.MinRetention).
// A missing root is not an error.
func (s *Store) Reclaim(ctx context.Context, maxAge time.Duration) (ReclaimStats, error) {
	var stats ReclaimStats
	cutoff := time.Now().Add(-maxAge)

	tags, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("artifact: read root: %w", err)
	}

	var errs []error
	for _, tag := range tags {
		if !tag.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, tag.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Scanned++
			info, err := entry.Info()
			if err != nil {
				// removed concurrently
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				stats.Failed++
				errs = append(errs, err)
				continue
			}
			stats.Removed++
		}
	}
	return stats, errors.Join(errs...)
}

// SweepFunc is an extra cleanup step run on every sweep tick.
type SweepFunc func(ctx context.Context) error

// Sweeper periodically reclaims old artifacts.
type Sweeper struct {
	store    *Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	extra    map[string]SweepFunc
}

func NewSweeper(store *Store, maxAge, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		extra:    make(map[string]SweepFunc),
	}
}

// Add registers an extra step, e.g. pruning history rows.
func (s *Sweeper) Add(name string, fn SweepFunc) {
	s.extra[name] = fn
}

// Start sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("artifact sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) {
	stats, err := s.store.Reclaim(ctx, s.maxAge)
	if err != nil {
		s.logger.Warn("artifact reclaim finished with errors", "error", err, "removed", stats.Removed, "failed", stats.Failed)
	} else {
		s.logger.Debug("artifacts reclaimed", "scanned", stats.Scanned, "removed", stats.Removed)
	}
	for name, fn := range s.extra {
		if err := fn(ctx); err != nil {
			s.logger.Warn("sweep step failed", "step", name, "error", err)
		}
	}
}
