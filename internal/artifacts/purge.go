package artifacts

import (
	"time"

	"docconv/internal/infra/logging"
)

// SchedulePurge deletes path once the purge delay has passed. Scheduling a path that
// already waits for its purge does nothing. Deletion is best effort.
func (s *Store) SchedulePurge(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[path]; ok {
		return
	}
	s.pending[path] = time.AfterFunc(s.purgeDelay, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()

		if err := s.Remove(path); err != nil {
			logging.Warn("Delayed purge failed", "path", path, "error", err)
			return
		}
		logging.Debug("Delivered file purged", "path", path)
	})
}

// PendingPurges reports how many purges are waiting.
func (s *Store) PendingPurges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close deletes every file still waiting for its purge right away.
func (s *Store) Close() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.pending))
	for p, t := range s.pending {
		t.Stop()
		paths = append(paths, p)
	}
	clear(s.pending)
	s.mu.Unlock()

	for _, p := range paths {
		if err := s.Remove(p); err != nil {
			logging.Warn("Purge on shutdown failed", "path", p, "error", err)
		}
	}
}
