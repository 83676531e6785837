package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/guia/internal/models"
)

func fragment(id, url, display, media, content string, tags ...string) models.Fragment {
	return models.Fragment{
		ID:      id,
		Content: content,
		Source: models.SourceDocument{
			URL:         url,
			DisplayName: display,
			MediaType:   media,
			Tags:        tags,
		},
	}
}

func testFragments() []models.Fragment {
	return []models.Fragment{
		fragment("f1", "https://escola.example/mitose.pdf", "Mitose para iniciantes", "pdf",
			"A mitose é a divisão celular que produz duas células idênticas.", "biologia", "célula"),
		fragment("f2", "https://escola.example/mitose-aula.mp4", "Aula de mitose", "video",
			"Nesta aula veremos as fases da mitose: prófase, metáfase, anáfase e telófase.", "biologia"),
		fragment("f3", "https://escola.example/revolucao.pdf", "Revolução Francesa", "pdf",
			"A Revolução Francesa começou em 1789 com a queda da Bastilha.", "história"),
	}
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("", Options{})
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Index(context.Background(), testFragments()); err != nil {
		t.Fatalf("Index: %v", err)
	}
	return idx
}

func ids(hits []Hit) map[string]bool {
	out := make(map[string]bool, len(hits))
	for _, h := range hits {
		out[h.ID] = true
	}
	return out
}

func TestBleveIndex_Search(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		filters models.SearchFilters
		want    []string
		notWant []string
	}{
		{name: "content match", query: "mitose", want: []string{"f1", "f2"}, notWant: []string{"f3"}},
		{name: "accents folded", query: "revolucao francesa", want: []string{"f3"}, notWant: []string{"f1"}},
		{name: "typo tolerated", query: "bastiha", want: []string{"f3"}},
		{name: "source name match", query: "iniciantes", want: []string{"f1"}},
		{name: "media filter", query: "mitose", filters: models.SearchFilters{MediaTypes: []string{"Vídeo", "video"}},
			want: []string{"f2"}, notWant: []string{"f1"}},
		{name: "tag filter", query: "mitose revolução", filters: models.SearchFilters{Tags: []string{"historia"}},
			want: []string{"f3"}, notWant: []string{"f1", "f2"}},
		{name: "source name filter", query: "mitose", filters: models.SearchFilters{SourceNameContains: "Aula"},
			want: []string{"f2"}, notWant: []string{"f1"}},
		{name: "stop-words only", query: "o que é isso", notWant: []string{"f1", "f2", "f3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search(ctx, tt.query, 10, tt.filters)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := ids(hits)
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("expected %s in %v", id, hits)
				}
			}
			for _, id := range tt.notWant {
				if got[id] {
					t.Errorf("did not expect %s in %v", id, hits)
				}
			}
		})
	}
}

func TestBleveIndex_Limit(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search(context.Background(), "mitose", 1, models.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}
	if hits, _ := idx.Search(context.Background(), "mitose", 0, models.SearchFilters{}); hits != nil {
		t.Errorf("zero limit should return nil, got %v", hits)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Delete(ctx, []string{"f3"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	hits, _ := idx.Search(ctx, "bastilha", 10, models.SearchFilters{})
	if len(hits) != 0 {
		t.Errorf("expected 0 hits after delete, got %v", hits)
	}

	if err := idx.DeleteDocument(ctx, "https://escola.example/mitose.pdf"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	n, _ := idx.DocCount()
	if n != 1 {
		t.Errorf("DocCount=%d, want 1", n)
	}
}

func TestNewBleveIndex_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path, Options{})
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.Index(ctx, testFragments()[:1]); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("index path should exist: %v", err)
	}
	if err := idx.Close(); err == nil {
		t.Error("second Close should fail")
	}

	reopened, err := NewBleveIndex(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	hits, _ := reopened.Search(ctx, "celular", 10, models.SearchFilters{})
	if len(hits) != 1 || hits[0].ID != "f1" {
		t.Errorf("reopened index lost fragments: %v", hits)
	}
}
