package intent

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "celula", "celula", 0},
		{"empty a", "", "mitose", 6},
		{"empty b", "mitose", "", 6},
		{"substitution", "mitose", "mitoze", 1},
		{"insertion", "genetica", "geneticas", 1},
		{"deletion", "fotossintese", "fotosintese", 1},
		{"kitten to sitting", "kitten", "sitting", 3},
		{"unicode", "célula", "celula", 1},
		{"transposition counts twice", "ab", "ba", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := levenshteinDistance(tt.b, tt.a); got != tt.want {
				t.Errorf("levenshteinDistance not symmetric for %q, %q", tt.a, tt.b)
			}
		})
	}
}

func TestDamerauDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"ab", "ba", 1},
		{"fotossitnese", "fotossintese", 1},
		{"ecologia", "ecologia", 0},
		{"algebra", "algbera", 1},
		{"", "abc", 3},
	}

	for _, tt := range tests {
		if got := damerauDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("damerauDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
