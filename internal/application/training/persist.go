package training

import (
	"context"
	"log"
	"time"

	"github.com/bep/debounce"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/metrics"
)

// persistTimeout bounds the background write; the debounced save has
// no caller to propagate cancellation from.
const persistTimeout = 10 * time.Second

// persistScheduler is the single-slot delayed save task. Every
// dataset-mutating action re-arms it; only the state present when the
// timer fires is persisted, coalescing bursts of rapid edits into one
// write. The slot is process-global, not per-dataset: switching
// datasets mid-debounce is handled by an explicit synchronous save at
// switch time, with the pending slot cancelled.
type persistScheduler struct {
	store     *Store
	debounced func(func())
}

func newPersistScheduler(s *Store, interval time.Duration) *persistScheduler {
	return &persistScheduler{
		store:     s,
		debounced: debounce.New(interval),
	}
}

// Schedule (re)arms the save timer.
func (p *persistScheduler) Schedule() {
	p.debounced(p.fire)
}

// Cancel replaces any pending save with a no-op.
func (p *persistScheduler) Cancel() {
	p.debounced(func() {})
}

// fire saves whatever dataset is active at fire time, not a captured
// snapshot; arming and firing may straddle further mutations and the
// latest state is always the one worth keeping. Failures are logged
// and surfaced through the store's error field once per streak so a
// broken substrate does not spam the renderer.
func (p *persistScheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	s := p.store
	s.mu.Lock()
	err := s.saveActiveLocked(ctx)
	if err != nil {
		metrics.DatasetSaveFailuresTotal.Inc()
		log.Printf("training: debounced save failed: %v", err)
		if !s.persistErrSurfaced {
			s.persistErrSurfaced = true
			s.errorMessage = "Failed to save changes"
		}
	} else {
		metrics.DatasetSavesTotal.Inc()
		s.persistErrSurfaced = false
	}
	s.mu.Unlock()

	if err != nil {
		s.notify()
	}
}
