package intent

import "testing"

func TestResolveSelection(t *testing.T) {
	tests := []struct {
		text       string
		options    int
		wantIndex  int
		wantParsed bool
		wantValid  bool
	}{
		{"2", 3, 1, true, true},
		{"segundo", 3, 1, true, true},
		{"o segundo", 3, 1, true, true},
		{"Quero a opção 2, por favor", 3, 1, true, true},
		{"2º", 3, 1, true, true},
		{"a terceira", 3, 2, true, true},
		{"último", 3, 2, true, true},
		{"primeiro", 3, 0, true, true},
		{"9", 3, -1, true, false},
		{"0", 3, -1, true, false},
		{"quinto", 3, -1, true, false},
		{"quero saber sobre mitose", 3, -1, false, false},
		{"", 3, -1, false, false},
		{"2 e 3", 3, -1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			idx, parsed, valid := ResolveSelection(tt.text, tt.options)
			if idx != tt.wantIndex || parsed != tt.wantParsed || valid != tt.wantValid {
				t.Errorf("ResolveSelection(%q) = %d, %v, %v; want %d, %v, %v",
					tt.text, idx, parsed, valid, tt.wantIndex, tt.wantParsed, tt.wantValid)
			}
		})
	}
}
