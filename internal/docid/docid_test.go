package docid

import (
	"strings"
	"testing"
)

func TestForSource(t *testing.T) {
	id1 := ForSource("https://escola.example/mitose.pdf")
	id2 := ForSource("  https://escola.example/mitose.pdf ")
	if id1 != id2 {
		t.Errorf("same source should give same ID: %q vs %q", id1, id2)
	}
	if !IsDocumentID(id1) {
		t.Errorf("unexpected ID format: %q", id1)
	}
	if ForSource("https://escola.example/meiose.pdf") == id1 {
		t.Error("different sources should give different IDs")
	}
	if ForSource("materiais/../mitose.txt") != ForSource("mitose.txt") {
		t.Error("local paths should be cleaned")
	}
	if IsDocumentID("doc:xyz") || IsDocumentID("file:0123456789abcdef") {
		t.Error("IsDocumentID accepted a foreign ID")
	}
}

func TestFragment(t *testing.T) {
	doc := ForSource("a.pdf")
	id := Fragment(doc, 3)
	if !strings.HasPrefix(id, doc) || !strings.HasSuffix(id, "#3") {
		t.Errorf("Fragment = %q", id)
	}
}
