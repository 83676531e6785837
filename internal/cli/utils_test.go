package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/guia/internal/indexer"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/turn"
)

func page(n int) *int { return &n }

func TestWriteTurn_Text(t *testing.T) {
	mitose := models.SourceDocument{URL: "https://m/mitose.pdf", DisplayName: "Mitose", MediaType: "pdf", PageNumber: page(3)}
	tests := []struct {
		name      string
		directive *models.Directive
		want      []string
	}{
		{
			name: "answer lists sources once",
			directive: &models.Directive{
				Kind: models.DirectiveAnswer,
				Text: "A mitose divide a célula.",
				Fragments: []models.Fragment{
					{ID: "a", Source: mitose},
					{ID: "b", Source: mitose},
					{ID: "c", Source: models.SourceDocument{URL: "https://m/aula.mp4"}},
				},
			},
			want: []string{"A mitose divide a célula.", "Fontes: Mitose, p. 3; aula.mp4"},
		},
		{
			name: "offer choice numbers options",
			directive: &models.Directive{
				Kind: models.DirectiveOfferChoice,
				Text: "Encontrei dois materiais.",
				Groups: []models.DocumentGroup{
					{DisplayName: "Mitose", MediaType: "pdf", Fragments: make([]models.Fragment, 2)},
					{DisplayName: "Meiose", Fragments: make([]models.Fragment, 1)},
				},
			},
			want: []string{"1. Mitose (pdf, 2 trechos)", "2. Meiose (material, 1 trecho)"},
		},
		{
			name: "suggest topics",
			directive: &models.Directive{
				Kind:   models.DirectiveSuggestTopics,
				Text:   "Não encontrei nada.",
				Topics: []string{"biologia", "história"},
			},
			want: []string{"Temas disponíveis: biologia, história"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteTurn(&buf, &turn.Result{Directive: tt.directive}, OutputText); err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestWriteTurn_JSON(t *testing.T) {
	res := &turn.Result{
		SessionID: "s1",
		TurnID:    "t1",
		Directive: &models.Directive{Kind: models.DirectiveDegraded, Text: "Tive um problema."},
		Failure:   fmt.Errorf("search: %w", models.ErrRetrievalFailure),
	}
	var buf bytes.Buffer
	if err := WriteTurn(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		SessionID string           `json:"session_id"`
		Directive models.Directive `json:"directive"`
		Failure   string           `json:"failure"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.SessionID != "s1" || decoded.Directive.Kind != models.DirectiveDegraded {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(decoded.Failure, models.ErrRetrievalFailure.Error()) {
		t.Errorf("failure = %q", decoded.Failure)
	}
}

func TestWriteTopics(t *testing.T) {
	topics := []models.Topic{
		{Name: "biologia", FragmentCount: 4, MediaTypes: []string{"pdf", "video"}, ExampleDocuments: []string{"Mitose"}},
		{Name: "genética"},
	}
	var buf bytes.Buffer
	if err := WriteTopics(&buf, topics, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "biologia (4 trechos; pdf, video)") || !strings.Contains(out, "genética\n") {
		t.Errorf("unexpected output:\n%s", out)
	}

	buf.Reset()
	_ = WriteTopics(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "Nenhum tema") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestWriteIngestStats(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteIngestStats(&buf, indexer.Stats{Documents: 2, Fragments: 7, Failed: 1}, OutputText)
	if got := buf.String(); got != "Indexed 2 documents (7 fragments), 1 failed\n" {
		t.Errorf("got %q", got)
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "TEXT": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"ação educação", 4, "ação..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords("um dois três quatro", 2); got != "um dois..." {
		t.Errorf("got %q", got)
	}
	if got := TruncateWords("um dois", 5); got != "um dois" {
		t.Errorf("got %q", got)
	}
}
