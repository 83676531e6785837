package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the sweeper looks for expired sessions.
const DefaultSweepInterval = 10 * time.Minute

// Sweep removes sessions inactive for longer than the TTL and returns how many
// it removed. Sessions held by a turn are skipped until the next sweep.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		select {
		case e.sem <- struct{}{}:
		default:
			continue
		}
		if e.session.LastActivity.Before(cutoff) {
			e.deleted = true
			delete(s.entries, id)
			removed++
			s.logger.Debug("session expired",
				zap.String("session_id", id),
				zap.Time("last_activity", e.session.LastActivity))
		}
		e.release()
	}
	return removed
}

// Sweeper runs Sweep on a timer until stopped.
type Sweeper struct {
	store    *Store
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// StartSweeper starts a background sweep every interval. Stop must be called
// to release the goroutine.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	sw := &Sweeper{store: s, interval: interval, cancel: cancel}
	sw.wg.Add(1)
	go sw.run(ctx)
	return sw
}

func (sw *Sweeper) run(ctx context.Context) {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sw.store.Sweep(); n > 0 {
				sw.store.logger.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

// Stop halts the sweeper and waits for it to exit.
func (sw *Sweeper) Stop() {
	sw.cancel()
	sw.wg.Wait()
}
