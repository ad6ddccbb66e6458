package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"docconv/internal/infra/logging"
)

// Sweep removes every entry of the output and temp directories whose modification
// time is older than the maximum age at now. It returns how many entries were removed.
func (s *Store) Sweep(now time.Time) (int, error) {
	removed := 0
	var firstErr error
	for _, dir := range []string{s.OutputDir, s.TempDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) <= s.maxAge {
				continue
			}
			if err := s.Remove(filepath.Join(dir, e.Name())); err != nil {
				logging.Warn("Sweep could not remove file", "path", filepath.Join(dir, e.Name()), "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			removed++
		}
	}
	return removed, firstErr
}

// Start sweeps every sweep interval until ctx is done. It returns immediately.
func (s *Store) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				n, err := s.Sweep(now)
				if err != nil {
					logging.Error("Sweep failed", "error", err, "removed", n)
					continue
				}
				if n > 0 {
					logging.Info("Swept old files", "removed", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
