package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
)

// StartLogRetentionCleaner prunes rotated log files older than retentionDays
// from logDir, once at startup and then daily until ctx is cancelled. A
// non-positive retention keeps everything.
func StartLogRetentionCleaner(ctx context.Context, retentionDays int, logDir string) {
	if retentionDays <= 0 {
		return
	}
	if strings.TrimSpace(logDir) == "" {
		Logger.Warn("log retention enabled without a log directory")
		return
	}

	prune := func() {
		if err := pruneExpiredLogs(logDir, retentionDays); err != nil {
			Logger.Warn("prune expired logs", zap.Error(err))
		}
	}
	prune()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prune()
			}
		}
	}()

	Logger.Info("log retention cleaner started",
		zap.Int("retention_days", retentionDays),
		zap.String("dir", logDir))
}

// pruneExpiredLogs deletes *.log files in logDir whose mtime is past the
// retention window. A missing directory is not an error; per-file failures
// are logged and skipped so one stuck file cannot block the sweep.
func pruneExpiredLogs(logDir string, retentionDays int) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read log dir")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(logDir, entry.Name())
		if err := os.Remove(path); err != nil {
			Logger.Warn("remove expired log", zap.String("path", path), zap.Error(err))
			continue
		}
		Logger.Info("removed expired log", zap.String("path", path))
	}
	return nil
}
