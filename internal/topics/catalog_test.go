package topics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/guia/internal/intent"
	"github.com/hyperjump/guia/internal/models"
)

type fakeSource struct {
	calls  atomic.Int32
	topics []models.Topic
	err    error
	delay  time.Duration
}

func (f *fakeSource) ListTopics(ctx context.Context) ([]models.Topic, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.topics, f.err
}

func TestCatalog_CachesSourceTopics(t *testing.T) {
	src := &fakeSource{topics: []models.Topic{{Name: "biologia", FragmentCount: 4, MediaTypes: []string{"pdf"}}}}
	c := NewCatalog(src)
	ctx := context.Background()

	first, err := c.ListTopics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	first[0].MediaTypes[0] = "mutated"
	second, _ := c.ListTopics(ctx)
	if src.calls.Load() != 1 {
		t.Errorf("source called %d times, want 1", src.calls.Load())
	}
	if second[0].MediaTypes[0] != "pdf" {
		t.Error("cached listing shared with callers")
	}

	c.Invalidate()
	_, _ = c.ListTopics(ctx)
	if src.calls.Load() != 2 {
		t.Errorf("Invalidate did not force a reload, calls %d", src.calls.Load())
	}
}

func TestCatalog_ConcurrentMissesShareQuery(t *testing.T) {
	src := &fakeSource{topics: []models.Topic{{Name: "história"}}, delay: 50 * time.Millisecond}
	c := NewCatalog(src)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ListTopics(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestCatalog_SeedFallback(t *testing.T) {
	seed := intent.NewVocabulary([]string{"genética", "mitose"})
	tests := []struct {
		name string
		src  Source
	}{
		{"source error", &fakeSource{err: errors.New("database locked")}},
		{"empty source", &fakeSource{}},
		{"no source", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(tt.src, WithSeed(seed), WithTTL(time.Minute))
			got, err := c.ListTopics(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			names := Names(got)
			if len(names) != 2 || names[0] != "genética" || names[1] != "mitose" {
				t.Errorf("names = %v", names)
			}
		})
	}
}

func TestCatalog_ErrorWithoutSeed(t *testing.T) {
	wantErr := errors.New("database locked")
	c := NewCatalog(&fakeSource{err: wantErr})
	if _, err := c.ListTopics(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("expected source error, got %v", err)
	}
	if _, err := NewCatalog(&fakeSource{}).ListTopics(context.Background()); err == nil {
		t.Error("expected error when nothing is available")
	}
}
