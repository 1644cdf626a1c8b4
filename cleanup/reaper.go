package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long an artifact may sit in the store before a
	// sweep deletes it.
	DefaultTTL = 10 * time.Minute

	// DefaultInterval is the time between sweeps.
	DefaultInterval = time.Minute
)

type SweepResult struct {
	Cleaned int
	Errors  int
}

// Reaper deletes expired artifacts from the store directory on a fixed
// schedule, independent of request activity. The directory is the only
// resource it shares with the converters and archiver; losing a race to an
// in-flight download is accepted and surfaces there as not-found.
type Reaper struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewReaper(dir string, ttl, interval time.Duration, logger *zap.Logger) *Reaper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{dir: dir, ttl: ttl, interval: interval, logger: logger}
}

// Start runs one sweep immediately, then sweeps on the configured interval
// until Stop is called.
func (r *Reaper) Start() error {
	r.logger.Info("Starting retention reaper",
		zap.String("dir", r.dir),
		zap.Duration("ttl", r.ttl),
		zap.Duration("interval", r.interval),
	)

	r.SweepExpired()

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.SweepExpired()
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule. An in-progress sweep finishes on its own; no
// completion is awaited beyond that.
func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
	r.logger.Info("Retention reaper stopped")
}

// SweepExpired deletes every regular file in the store directory older than
// the TTL, judged by last-modified time. Individual failures are tallied
// and skipped, never fatal.
func (r *Reaper) SweepExpired() SweepResult {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return SweepResult{}
		}
		r.logger.Error("Failed to read artifact directory", zap.Error(err))
		return SweepResult{Errors: 1}
	}

	now := time.Now()
	var result SweepResult

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			result.Errors++
			r.logger.Error("Failed to stat artifact",
				zap.String("artifact", entry.Name()),
				zap.Error(err),
			)
			continue
		}

		age := now.Sub(info.ModTime())
		if age <= r.ttl {
			continue
		}

		if err := os.Remove(filepath.Join(r.dir, entry.Name())); err != nil {
			result.Errors++
			r.logger.Error("Failed to delete expired artifact",
				zap.String("artifact", entry.Name()),
				zap.Error(err),
			)
			continue
		}

		result.Cleaned++
		r.logger.Debug("Deleted expired artifact",
			zap.String("artifact", entry.Name()),
			zap.Duration("age", age),
		)
	}

	if result.Cleaned > 0 || result.Errors > 0 {
		r.logger.Info("Sweep completed",
			zap.Int("cleaned", result.Cleaned),
			zap.Int("errors", result.Errors),
		)
	}

	return result
}
