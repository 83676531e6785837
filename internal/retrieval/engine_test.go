package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/guia/internal/embedding"
	"github.com/hyperjump/guia/internal/keyword"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/storage"
	"github.com/hyperjump/guia/internal/vector"
)

type material struct {
	url, display, media string
	tags                []string
	contents            []string
}

var corpus = []material{
	{"https://escola.example/mitose.pdf", "Mitose para iniciantes", "pdf", []string{"biologia"}, []string{
		"A mitose é a divisão celular que produz duas células filhas idênticas.",
		"Na prófase os cromossomos se condensam e ficam visíveis.",
	}},
	{"https://escola.example/mitose.mp4", "Aula de mitose", "video", []string{"biologia"}, []string{
		"Nesta aula de vídeo veremos todas as fases da mitose celular.",
	}},
	{"https://escola.example/revolucao.pdf", "Revolução Francesa", "pdf", []string{"história"}, []string{
		"A Revolução Francesa começou em 1789 com a queda da Bastilha.",
	}},
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	emb := embedding.NewMockEmbedder(512)
	vecIndex, _ := vector.NewMemoryIndex(512)
	kwIndex, err := keyword.NewBleveIndex("", keyword.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	for _, m := range corpus {
		doc := &models.Document{Source: models.SourceDocument{URL: m.url, DisplayName: m.display, MediaType: m.media, Tags: m.tags}}
		frags := make([]models.Fragment, len(m.contents))
		for i, c := range m.contents {
			frags[i] = models.Fragment{ID: m.url + "#" + string(rune('a'+i)), Content: c, Source: doc.Source, SequenceIndex: i}
		}
		if err := store.SaveDocument(ctx, doc, frags); err != nil {
			t.Fatal(err)
		}
		ids := make([]string, len(frags))
		texts := make([]string, len(frags))
		for i, f := range frags {
			ids[i], texts[i] = f.ID, f.Content
		}
		vecs, _ := emb.EmbedBatch(ctx, texts)
		if err := vecIndex.Upsert(ctx, ids, vecs); err != nil {
			t.Fatal(err)
		}
		if err := kwIndex.Index(ctx, frags); err != nil {
			t.Fatal(err)
		}
	}
	return NewEngine(store, emb, vecIndex, kwIndex, cfg, nil)
}

func TestEngine_Search(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	got, err := e.Search(ctx, "fases da mitose celular", 10, models.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected results")
	}
	if got[0].ID != "https://escola.example/mitose.mp4#a" {
		t.Errorf("top result = %s", got[0].ID)
	}
	for i, f := range got {
		if f.VectorScore <= 0 || f.VectorScore > 1 {
			t.Errorf("VectorScore %f outside (0,1]", f.VectorScore)
		}
		if i > 0 && f.VectorScore > got[i-1].VectorScore {
			t.Error("results not ordered by score")
		}
		if f.Source.URL == "https://escola.example/revolucao.pdf" {
			t.Errorf("unrelated fragment returned: %+v", f)
		}
		if f.DocumentFragments == 0 {
			t.Error("fragment loaded without document fragment count")
		}
	}
}

func TestEngine_SearchFilters(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	got, err := e.Search(ctx, "mitose", 10, models.SearchFilters{MediaTypes: []string{"pdf"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected pdf results")
	}
	for _, f := range got {
		if f.Source.MediaType != "pdf" {
			t.Errorf("filter not applied: %s", f.Source.MediaType)
		}
	}

	got, err = e.Search(ctx, "mitose", 10, models.SearchFilters{MediaTypes: []string{"audio"}})
	if err != nil || got != nil {
		t.Errorf("expected no results for unmatched filter, got %v, %v", got, err)
	}
}

func TestEngine_SearchLimitAndErrors(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	got, _ := e.Search(ctx, "mitose", 1, models.SearchFilters{})
	if len(got) != 1 {
		t.Errorf("expected 1 result, got %d", len(got))
	}
	if _, err := e.Search(ctx, "   ", 5, models.SearchFilters{}); err == nil {
		t.Error("expected error for empty query")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Search(cancelled, "mitose", 5, models.SearchFilters{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngine_SemanticOnly(t *testing.T) {
	e := newTestEngine(t, Config{KeywordWeight: 0, SemanticWeight: 1})
	e.keywords = nil
	got, err := e.Search(context.Background(), "Bastilha 1789", 3, models.SearchFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].Source.DisplayName != "Revolução Francesa" {
		t.Errorf("got %+v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"semantic only", Config{SemanticWeight: 1}, false},
		{"sum too small", Config{KeywordWeight: 0.2, SemanticWeight: 0.2}, true},
		{"negative", Config{KeywordWeight: -0.5, SemanticWeight: 1.5}, true},
		{"min score", Config{KeywordWeight: 0.5, SemanticWeight: 0.5, MinScore: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFuse(t *testing.T) {
	kw := NormalizeKeywordScores([]keyword.Hit{{ID: "a", Score: 4}, {ID: "b", Score: 2}})
	if kw["a"] != 1 || kw["b"] != 0.5 {
		t.Fatalf("normalized = %v", kw)
	}
	sem := SemanticScores([]vector.Hit{{ID: "b", Score: 0.9}, {ID: "c", Score: 0.4}})
	fused := Fuse(kw, sem, 0.5, 0.5)
	if len(fused) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(fused))
	}
	if fused[0].ID != "b" || math.Abs(fused[0].Score-0.7) > 1e-9 {
		t.Errorf("top = %+v", fused[0])
	}
	for i := 1; i < len(fused); i++ {
		if fused[i].Score > fused[i-1].Score {
			t.Error("fused hits not sorted")
		}
	}
	if len(NormalizeKeywordScores(nil)) != 0 {
		t.Error("expected empty map")
	}
}
