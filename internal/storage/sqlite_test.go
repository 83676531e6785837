package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/guia/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func document(url, display, media string, tags ...string) *models.Document {
	return &models.Document{Source: models.SourceDocument{
		URL: url, DisplayName: display, MediaType: media, Tags: tags,
	}}
}

func fragments(doc *models.Document, contents ...string) []models.Fragment {
	out := make([]models.Fragment, len(contents))
	for i, c := range contents {
		out[i] = models.Fragment{
			ID:            doc.Key() + "#" + string(rune('0'+i)),
			Content:       c,
			Source:        doc.Source,
			SequenceIndex: i,
		}
	}
	return out
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := document("https://escola.example/mitose.pdf", "Mitose", "pdf", "biologia")
	if err := store.SaveDocument(ctx, doc, fragments(doc, "a", "b")); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() || doc.FragmentCount != 2 {
		t.Errorf("SaveDocument did not fill in doc: %+v", doc)
	}

	got, err := store.GetDocument(ctx, doc.Key())
	if err != nil {
		t.Fatal(err)
	}
	if got.Source.DisplayName != "Mitose" || got.FragmentCount != 2 || len(got.Source.Tags) != 1 {
		t.Errorf("got %+v", got)
	}

	doc.Source.DisplayName = "Mitose (revisado)"
	if err := store.SaveDocument(ctx, doc, fragments(doc, "a")); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, doc.Key())
	if got.Source.DisplayName != "Mitose (revisado)" || got.FragmentCount != 1 {
		t.Errorf("update not applied: %+v", got)
	}
	if n, _ := store.CountFragments(ctx); n != 1 {
		t.Errorf("old fragments not replaced, count %d", n)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListDocuments = %d, %v", len(list), err)
	}

	if err := store.DeleteDocument(ctx, doc.Key()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, doc.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteDocument(ctx, doc.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if n, _ := store.CountFragments(ctx); n != 0 {
		t.Errorf("fragments should cascade, count %d", n)
	}

	if err := store.SaveDocument(ctx, &models.Document{}, nil); err == nil {
		t.Error("expected error for document without key")
	}
}

func TestSQLiteStorage_Fragments(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := document("https://escola.example/celula.pdf", "Célula", "pdf", "biologia", "citologia")
	frags := fragments(doc, "primeiro", "segundo", "terceiro")
	page := 4
	frags[1].Source.PageNumber = &page
	frags[1].Source.SectionLabel = "Capítulo 2"
	if err := store.SaveDocument(ctx, doc, frags); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetFragments(ctx, []string{frags[2].ID, "missing", frags[1].ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != frags[2].ID || got[1].ID != frags[1].ID {
		t.Fatalf("order not preserved: %+v", got)
	}
	second := got[1]
	if second.Source.PageNumber == nil || *second.Source.PageNumber != 4 || second.Source.SectionLabel != "Capítulo 2" {
		t.Errorf("page/section lost: %+v", second.Source)
	}
	if second.DocumentFragments != 3 || second.SequenceIndex != 1 || len(second.Source.Tags) != 2 {
		t.Errorf("fragment fields: %+v", second)
	}
	if got[0].Source.PageNumber != nil {
		t.Error("page number should stay nil")
	}

	byDoc, err := store.FragmentsByDocument(ctx, doc.Key())
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range byDoc {
		if f.SequenceIndex != i {
			t.Errorf("FragmentsByDocument not in sequence order: %d at %d", f.SequenceIndex, i)
		}
	}

	if none, err := store.GetFragments(ctx, nil); err != nil || none != nil {
		t.Errorf("GetFragments(nil) = %v, %v", none, err)
	}
}

func TestSQLiteStorage_FragmentIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	pdf := document("https://escola.example/mitose.pdf", "Mitose", "pdf", "Biologia")
	video := document("https://escola.example/aula.mp4", "Aula de genética", "vídeo", "biologia", "genética")
	_ = store.SaveDocument(ctx, pdf, fragments(pdf, "a", "b"))
	_ = store.SaveDocument(ctx, video, fragments(video, "c"))

	tests := []struct {
		name    string
		filters models.SearchFilters
		want    int
	}{
		{"media type folded", models.SearchFilters{MediaTypes: []string{"video"}}, 1},
		{"tag any", models.SearchFilters{Tags: []string{"biologia"}}, 3},
		{"tag and media", models.SearchFilters{Tags: []string{"genetica"}, MediaTypes: []string{"pdf"}}, 0},
		{"source name", models.SearchFilters{SourceNameContains: "MITOSE"}, 2},
		{"file name", models.SearchFilters{SourceNameContains: "aula.mp4"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := store.FragmentIDs(ctx, tt.filters)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != tt.want {
				t.Errorf("got %d ids, want %d", len(ids), tt.want)
			}
		})
	}
}

func TestSQLiteStorage_ListTopics(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	docs := []struct {
		doc   *models.Document
		count int
	}{
		{document("u1", "Mitose em PDF", "pdf", "Biologia"), 3},
		{document("u2", "Aula de mitose", "video", "biologia", "Genética"), 2},
		{document("u3", "Revolução Francesa", "pdf", "História"), 1},
	}
	for _, d := range docs {
		contents := make([]string, d.count)
		for i := range contents {
			contents[i] = "trecho"
		}
		if err := store.SaveDocument(ctx, d.doc, fragments(d.doc, contents...)); err != nil {
			t.Fatal(err)
		}
	}

	topics, err := store.ListTopics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %+v", topics)
	}
	bio := topics[0]
	if bio.FragmentCount != 5 {
		t.Errorf("biologia fragment count = %d, want 5", bio.FragmentCount)
	}
	if len(bio.MediaTypes) != 2 || bio.MediaTypes[0] != "pdf" || bio.MediaTypes[1] != "video" {
		t.Errorf("media types = %v", bio.MediaTypes)
	}
	if len(bio.ExampleDocuments) != 2 || bio.ExampleDocuments[0] != "Mitose em PDF" {
		t.Errorf("examples = %v", bio.ExampleDocuments)
	}
	for _, topic := range topics[1:] {
		if topic.FragmentCount > bio.FragmentCount {
			t.Errorf("topics not ordered by fragment count: %+v", topics)
		}
	}
}

func TestNewSQLiteStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "guia.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := document("u1", "Doc", "pdf")
	if err := store.SaveDocument(context.Background(), doc, fragments(doc, "x")); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	reopened, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if n, _ := reopened.CountDocuments(context.Background()); n != 1 {
		t.Errorf("CountDocuments = %d after reopen", n)
	}
}

func TestUsageBytes(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(file, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	_ = os.MkdirAll(sub, 0755)
	_ = os.WriteFile(filepath.Join(sub, "b.bin"), make([]byte, 50), 0644)

	n, err := UsageBytes(file, sub, "", ":memory:", filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 150 {
		t.Errorf("UsageBytes = %d, want 150", n)
	}
}
