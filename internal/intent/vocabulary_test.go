package intent

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/guia/pkg/utils"
)

func TestVocabulary_Match(t *testing.T) {
	v := NewVocabulary([]string{"Fotossíntese", "Segunda Guerra Mundial", "guerra fria", "pH", "célula"})

	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"fotossintese", "Fotossíntese", true},
		{"fale da segunda guerra mundial", "Segunda Guerra Mundial", true},
		{"a guerra fria", "guerra fria", true},
		{"celulas", "célula", true},
		{"fotosintese", "Fotossíntese", true},
		{"guerra", "", false},
		{"ph", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := v.Match(utils.Words(tt.text))
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestVocabulary_NoFuzzy(t *testing.T) {
	v := NewVocabulary([]string{"genética"}, WithMaxDistance(0))
	if _, ok := v.Match([]string{"genetcia"}); ok {
		t.Error("fuzzy match with max distance 0")
	}
}

func TestVocabulary_ReplaceConcurrent(t *testing.T) {
	v := NewVocabulary(SeedTopics)
	if v.Len() != len(SeedTopics) {
		t.Fatalf("Len() = %d, want %d", v.Len(), len(SeedTopics))
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v.Match([]string{"ecologia"})
			}
		}()
	}
	v.Replace([]string{"astronomia", "Astronomia", "ecologia"})
	wg.Wait()

	terms := v.Terms()
	if strings.Join(terms, ",") != "astronomia,ecologia" {
		t.Errorf("Terms() = %v", terms)
	}
}

func TestLoadTerms(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "vocab.yaml")
	if err := os.WriteFile(good, []byte("topics:\n  - astronomia\n  - sistema solar\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	terms, err := LoadTerms(good)
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 2 || terms[1] != "sistema solar" {
		t.Errorf("terms = %v", terms)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("temas: [x]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTerms(bad); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := LoadTerms(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMergeTerms(t *testing.T) {
	got := MergeTerms([]string{"a", "b"}, nil, []string{"b", "c"})
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("MergeTerms = %v", got)
	}
}
