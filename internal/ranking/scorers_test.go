package ranking

import (
	"strings"
	"testing"

	"github.com/hyperjump/guia/internal/models"
)

func TestCompletenessScorer_Score(t *testing.T) {
	config := DefaultRankingConfig()
	scorer := NewCompletenessScorer(config)
	long := strings.Repeat("A fotossíntese converte luz em energia química. ", 6)

	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"empty", "", 0},
		{"lowercase fragment", "e então a planta", 0},
		{"capital only", "Então a planta", 0.25},
		{"capital and terminal", "Então a planta cresce.", 0.5},
		{"two sentences", "A planta cresce. Ela precisa de luz.", 0.75},
		{"full marks", long, 1.0},
		{"quoted ending", "Ele disse: \"A luz é essencial.\"", 0.5},
		{"short spans do not count", "Sim. Não. Talvez.", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &ScoringContext{Fragment: &models.Fragment{Content: tt.content}}
			got := scorer.Score(ctx)
			if got != tt.want {
				t.Errorf("Score(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestPositionScorer_Score(t *testing.T) {
	scorer := NewPositionScorer(DefaultRankingConfig())

	tests := []struct {
		name  string
		seq   int
		total int
		want  float64
	}{
		{"first chunk", 0, 10, 0.9},
		{"boundary 0.1", 1, 10, 0.9},
		{"early middle", 3, 10, 1.0},
		{"boundary 0.5", 5, 10, 1.0},
		{"late middle", 7, 10, 0.8},
		{"tail", 9, 10, 0.6},
		{"unknown total", 4, 0, neutralPositionScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &ScoringContext{Fragment: &models.Fragment{SequenceIndex: tt.seq, DocumentFragments: tt.total}}
			if got := scorer.Score(ctx); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetadataScorer_Score(t *testing.T) {
	config := DefaultRankingConfig()
	scorer := NewMetadataScorer(config)
	analyzer := NewQueryAnalyzer()

	tests := []struct {
		name    string
		query   string
		source  models.SourceDocument
		wantMin float64
		wantMax float64
	}{
		{
			name:    "no overlap",
			query:   "geometria",
			source:  models.SourceDocument{URL: "https://x/bio.pdf", Tags: []string{"biologia"}},
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "tag match ignores accents",
			query:   "Fotossíntese",
			source:  models.SourceDocument{Tags: []string{"fotossintese"}},
			wantMin: config.TagMatchScore - 1e-9,
			wantMax: config.TagMatchScore + 1e-9,
		},
		{
			name:    "tag and file name",
			query:   "fotossintese",
			source:  models.SourceDocument{URL: "https://x/fotossintese.pdf", Tags: []string{"fotossintese"}},
			wantMin: config.TagMatchScore + config.FileNameMatchScore - 1e-9,
			wantMax: config.TagMatchScore + config.FileNameMatchScore + 1e-9,
		},
		{
			name:    "media type",
			query:   "video sobre celulas",
			source:  models.SourceDocument{MediaType: "video"},
			wantMin: config.TypeMatchScore - 1e-9,
			wantMax: config.TypeMatchScore + 1e-9,
		},
		{
			name:  "capped at one",
			query: "celula mitose meiose divisao",
			source: models.SourceDocument{
				URL:  "https://x/celula-mitose-meiose-divisao.pdf",
				Tags: []string{"celula", "mitose", "meiose", "divisao"},
			},
			wantMin: 1,
			wantMax: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &ScoringContext{
				Query:    analyzer.Analyze(tt.query),
				Fragment: &models.Fragment{Source: tt.source},
			}
			got := scorer.Score(ctx)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("Score() = %v, want [%v, %v]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestQueryAnalyzer_Analyze(t *testing.T) {
	analyzer := NewQueryAnalyzer()

	got := analyzer.Analyze("O que é a Fotossíntese e a fotossintese das plantas?")
	want := []string{"fotossintese", "plantas"}
	if len(got.Terms) != len(want) {
		t.Fatalf("Terms = %v, want %v", got.Terms, want)
	}
	for i := range want {
		if got.Terms[i] != want[i] {
			t.Errorf("Terms[%d] = %q, want %q", i, got.Terms[i], want[i])
		}
	}
}

func TestRankingConfig_Validate(t *testing.T) {
	config := DefaultRankingConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	config.VectorWeight = 0.5
	if err := config.Validate(); err == nil {
		t.Error("expected error for weights not summing to 1")
	}

	empty := &RankingConfig{}
	empty.ApplyDefaults()
	if err := empty.Validate(); err != nil {
		t.Errorf("ApplyDefaults should yield a valid config: %v", err)
	}
}
