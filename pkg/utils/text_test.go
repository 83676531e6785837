package utils

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("ação rápida", 4); got != "ação..." {
		t.Errorf("rune-aware truncation: got %q", got)
	}
}

func TestFoldAccents(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Você", "voce"},
		{"FOTOSSÍNTESE", "fotossintese"},
		{"intermediário", "intermediario"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := FoldAccents(tt.in); got != tt.want {
			t.Errorf("FoldAccents(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWords(t *testing.T) {
	got := Words("Oi, bom dia! O que é 'Física'?")
	want := []string{"oi", "bom", "dia", "o", "que", "e", "fisica"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
}

func TestClamp01AndMean(t *testing.T) {
	if Clamp01(-0.2) != 0 || Clamp01(1.7) != 1 || Clamp01(0.4) != 0.4 {
		t.Error("Clamp01 bounds")
	}
	if Mean(nil) != 0 {
		t.Error("Mean(nil) should be 0")
	}
	if Mean([]float64{0.5, 1.0}) != 0.75 {
		t.Errorf("Mean = %v", Mean([]float64{0.5, 1.0}))
	}
}
