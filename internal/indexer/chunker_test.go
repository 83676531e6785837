package indexer

import (
	"strings"
	"testing"
)

func TestChunker_Chunk(t *testing.T) {
	text := "Um dois três quatro. Cinco seis sete oito nove. Dez onze doze treze catorze quinze."
	tests := []struct {
		name    string
		max     int
		overlap int
		want    []string
	}{
		{
			name: "sentences packed under budget",
			max:  10,
			want: []string{
				"Um dois três quatro. Cinco seis sete oito nove.",
				"Dez onze doze treze catorze quinze.",
			},
		},
		{
			name:    "overlap carries trailing sentence",
			max:     12,
			overlap: 5,
			want: []string{
				"Um dois três quatro. Cinco seis sete oito nove.",
				"Cinco seis sete oito nove. Dez onze doze treze catorze quinze.",
			},
		},
		{
			name: "everything fits",
			max:  100,
			want: []string{text},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewChunker(tt.max, tt.overlap).Chunk(text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunker_LongSentence(t *testing.T) {
	got := NewChunker(4, 1).Chunk("Curta. a b c d e f g h i j")
	want := []string{"Curta.", "a b c d", "d e f g", "g h i j"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestChunker_Empty(t *testing.T) {
	if chunks := NewChunker(5, 1).Chunk("   \n\t  "); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestNewChunker_Clamps(t *testing.T) {
	c := NewChunker(0, 500)
	if c.maxWords != 120 || c.overlapWords != 60 {
		t.Errorf("got max=%d overlap=%d", c.maxWords, c.overlapWords)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences(`Ele disse "olá!" e saiu. Será? Sim… fim`)
	if len(got) != 5 {
		t.Fatalf("got %d sentences: %q", len(got), got)
	}
	if strings.Join(got[0], " ") != `Ele disse "olá!"` {
		t.Errorf("first sentence = %q", got[0])
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"linha\num\r\n\tdois", "linha um dois"},
		{"\uFEFFcom\x00trole", "comtrole"},
		{"cafe\u0301", "caf\u00e9"},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
