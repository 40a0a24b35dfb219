// Package startup provides utilities for application startup tasks.
package startup

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/ingest"
	"github.com/sanketb-14/Streamline-sub000/internal/storage"
)

// SweepStagingDirs removes upload staging directories older than maxAge
// from the staging sandbox. Only directories named with ingest.StagingPrefix
// are touched. They are left behind when the process dies mid-upload.
//
// Returns the number of directories removed and any error encountered.
func SweepStagingDirs(logger *slog.Logger, staging *storage.Sandbox, maxAge time.Duration) (int, error) {
	entries, err := staging.List(".")
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("staging directory does not exist, skipping sweep",
			slog.String("path", staging.BaseDir()),
		)
		return 0, nil
	}
	if err != nil {
		logger.Error("failed to read staging directory",
			slog.String("path", staging.BaseDir()),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ingest.StagingPrefix) {
			continue
		}

		dirPath := filepath.Join(staging.BaseDir(), entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get staging directory info",
				slog.String("path", dirPath),
				slog.String("error", err.Error()),
			)
			continue
		}

		// An upload in progress keeps touching its directory.
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := staging.RemoveAll(entry.Name()); err != nil {
			logger.Warn("failed to remove orphaned staging directory",
				slog.String("path", dirPath),
				slog.String("error", err.Error()),
			)
			continue
		}

		logger.Info("removed orphaned staging directory",
			slog.String("path", dirPath),
			slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)),
		)
		removed++
	}

	return removed, nil
}
