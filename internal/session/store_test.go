package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hyperjump/guia/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestStore_UpdateCreatesAndCommits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	snap, err := store.Update(ctx, "s1", func(s *models.ConversationSession) error {
		AppendTurn(s, models.Turn{ID: "t1", UserText: "oi"})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(snap.History) != 1 {
		t.Fatalf("History = %d, want 1", len(snap.History))
	}

	// Mutating a snapshot must not leak into the store.
	snap.History[0].UserText = "changed"
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.History[0].UserText != "oi" {
		t.Errorf("snapshot aliased stored session")
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")
	store.Update(ctx, "s1", func(*models.ConversationSession) error { return nil })

	_, err := store.Update(ctx, "s1", func(s *models.ConversationSession) error {
		s.FlowState = models.FlowAwaitingChoice
		AppendTurn(s, models.Turn{ID: "t1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FlowState != models.FlowNew || len(got.History) != 0 {
		t.Errorf("partial transition committed: state=%s history=%d", got.FlowState, len(got.History))
	}
}

func TestStore_UnknownSession(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, models.ErrUnknownSession) {
		t.Errorf("Get err = %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, models.ErrUnknownSession) {
		t.Errorf("Delete err = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestStore_FailedUpdateLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	errTurn := errors.New("turn failed")

	t.Run("new session is not kept", func(t *testing.T) {
		store := NewStore()
		snap, err := store.Update(ctx, "novo", func(s *models.ConversationSession) error {
			s.FlowState = models.FlowActive
			return errTurn
		})
		if !errors.Is(err, errTurn) || snap != nil {
			t.Fatalf("Update = %v, %v", snap, err)
		}
		if store.Len() != 0 {
			t.Errorf("Len = %d, want 0", store.Len())
		}
		if _, err := store.Get(ctx, "novo"); !errors.Is(err, models.ErrUnknownSession) {
			t.Errorf("Get err = %v", err)
		}
	})

	t.Run("existing session keeps its state", func(t *testing.T) {
		store := NewStore()
		store.Update(ctx, "s", func(s *models.ConversationSession) error {
			s.FlowState = models.FlowActive
			return nil
		})
		snap, err := store.Update(ctx, "s", func(s *models.ConversationSession) error {
			s.FlowState = models.FlowAwaitingChoice
			return errTurn
		})
		if !errors.Is(err, errTurn) || snap == nil || snap.FlowState != models.FlowActive {
			t.Fatalf("Update = %+v, %v", snap, err)
		}
		if store.Len() != 1 {
			t.Errorf("Len = %d, want 1", store.Len())
		}
	})

	t.Run("cancelled context creates nothing", func(t *testing.T) {
		store := NewStore()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Update(cctx, "novo", func(*models.ConversationSession) error { return nil })
		if !errors.Is(err, models.ErrSessionBusy) {
			t.Fatalf("err = %v, want ErrSessionBusy", err)
		}
		if store.Len() != 0 {
			t.Errorf("Len = %d, want 0", store.Len())
		}
	})
}

func TestStore_SerializesSameSession(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", func(s *models.ConversationSession) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				n := len(s.History)
				time.Sleep(time.Millisecond)
				AppendTurn(s, models.Turn{ID: "t"})
				if len(s.History) != n+1 {
					t.Error("history changed underneath the turn")
				}

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	got, _ := store.Get(ctx, "shared")
	if len(got.History) != workers {
		t.Errorf("History = %d, want %d", len(got.History), workers)
	}
}

func TestStore_DistinctSessionsRunInParallel(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		store.Update(ctx, "a", func(*models.ConversationSession) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	tctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := store.Update(tctx, "b", func(*models.ConversationSession) error { return nil }); err != nil {
		t.Errorf("session b blocked by a: %v", err)
	}
	close(release)
	<-done
}

func TestStore_BusyHonoursContext(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Update(ctx, "s", func(*models.ConversationSession) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := store.Get(tctx, "s")
	if !errors.Is(err, models.ErrSessionBusy) {
		t.Errorf("err = %v, want ErrSessionBusy", err)
	}
	close(release)
	<-done
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.Update(ctx, "s", func(*models.ConversationSession) error { return nil })

	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "s"); !errors.Is(err, models.ErrUnknownSession) {
		t.Errorf("Get after delete err = %v", err)
	}

	// Update after delete starts a fresh session.
	snap, err := store.Update(ctx, "s", func(*models.ConversationSession) error { return nil })
	if err != nil || snap.FlowState != models.FlowNew {
		t.Errorf("recreate: %v, %v", snap, err)
	}
}

func TestStore_Sweep(t *testing.T) {
	clock := newClock()
	store := NewStore(WithTTL(time.Hour), WithClock(clock.Now))
	ctx := context.Background()

	store.Update(ctx, "old", func(*models.ConversationSession) error { return nil })
	clock.Advance(50 * time.Minute)
	store.Update(ctx, "fresh", func(*models.ConversationSession) error { return nil })
	clock.Advance(20 * time.Minute)

	if n := store.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
}

func TestStore_SweepSkipsHeldSession(t *testing.T) {
	clock := newClock()
	store := NewStore(WithTTL(time.Hour), WithClock(clock.Now))
	ctx := context.Background()
	store.Update(ctx, "s", func(*models.ConversationSession) error { return nil })
	clock.Advance(2 * time.Hour)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Update(ctx, "s", func(*models.ConversationSession) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	if n := store.Sweep(); n != 0 {
		t.Errorf("Sweep removed a held session")
	}
	close(release)
	<-done

	// The turn refreshed LastActivity, so the session survives.
	if n := store.Sweep(); n != 0 {
		t.Errorf("Sweep removed an active session")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newClock()
	store := NewStore(WithTTL(time.Minute), WithClock(clock.Now))
	store.Update(context.Background(), "s", func(*models.ConversationSession) error { return nil })
	clock.Advance(time.Hour)

	sw := store.StartSweeper(context.Background(), 5*time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for store.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sw.Stop()

	if store.Len() != 0 {
		t.Errorf("sweeper did not expire the session")
	}
}
