package intent

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hyperjump/guia/pkg/utils"
)

// SeedTopics is the static vocabulary the classifier falls back to when the
// topic index is unavailable or empty.
var SeedTopics = []string{
	"matemática", "álgebra", "geometria", "frações", "equações", "estatística", "probabilidade",
	"português", "gramática", "literatura", "redação", "interpretação de texto",
	"história", "revolução francesa", "segunda guerra mundial", "brasil colônia",
	"geografia", "clima", "relevo", "cartografia",
	"biologia", "célula", "fotossíntese", "genética", "ecologia", "evolução", "mitose",
	"química", "tabela periódica", "ligações químicas", "estequiometria",
	"física", "cinemática", "eletricidade", "óptica", "termodinâmica",
	"inglês", "filosofia", "sociologia", "programação", "algoritmos",
}

// minFuzzyRunes is the shortest word eligible for typo-tolerant matching.
const minFuzzyRunes = 5

// Vocabulary is the set of known topic terms. It is safe for concurrent use and
// can be replaced wholesale while classifiers are reading it.
type Vocabulary struct {
	mu sync.RWMutex
	// terms maps the folded form of a term to its display form.
	terms map[string]string
	// phrases holds folded multi-word terms as token lists, longest first.
	phrases [][]string
	// words holds folded single-word terms, sorted.
	words       []string
	maxDistance int
}

// VocabularyOption is a functional option for configuring a Vocabulary.
type VocabularyOption func(*Vocabulary)

// WithMaxDistance sets the maximum edit distance for fuzzy single-word matches.
// Zero disables fuzzy matching.
func WithMaxDistance(d int) VocabularyOption {
	return func(v *Vocabulary) {
		if d >= 0 {
			v.maxDistance = d
		}
	}
}

// NewVocabulary creates a vocabulary holding terms.
func NewVocabulary(terms []string, opts ...VocabularyOption) *Vocabulary {
	v := &Vocabulary{maxDistance: 1}
	for _, opt := range opts {
		opt(v)
	}
	v.Replace(terms)
	return v
}

// Replace swaps the vocabulary contents. Terms shorter than three runes after
// folding are ignored.
func (v *Vocabulary) Replace(terms []string) {
	next := make(map[string]string, len(terms))
	var phrases [][]string
	var words []string
	for _, term := range terms {
		tokens := utils.Words(term)
		if len(tokens) == 0 {
			continue
		}
		key := strings.Join(tokens, " ")
		if utf8.RuneCountInString(key) < 3 {
			continue
		}
		if _, dup := next[key]; dup {
			continue
		}
		next[key] = utils.NormalizeSpace(term)
		if len(tokens) > 1 {
			phrases = append(phrases, tokens)
		} else {
			words = append(words, key)
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i]) > len(phrases[j])
	})
	sort.Strings(words)

	v.mu.Lock()
	v.terms = next
	v.phrases = phrases
	v.words = words
	v.mu.Unlock()
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.terms)
}

// Terms returns the display forms of all terms, sorted.
func (v *Vocabulary) Terms() []string {
	v.mu.RLock()
	out := make([]string, 0, len(v.terms))
	for _, display := range v.terms {
		out = append(out, display)
	}
	v.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Match looks for a known term in the folded token list. Multi-word terms are
// tried first (longest first), then exact single words, then single words
// within the edit distance. It returns the display form of the term.
func (v *Vocabulary) Match(tokens []string) (string, bool) {
	if len(tokens) == 0 {
		return "", false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, phrase := range v.phrases {
		if containsPhrase(tokens, phrase) {
			return v.terms[strings.Join(phrase, " ")], true
		}
	}
	for _, tok := range tokens {
		if display, ok := v.terms[tok]; ok {
			return display, true
		}
	}
	if v.maxDistance == 0 {
		return "", false
	}
	for _, tok := range tokens {
		if term, ok := v.suggest(tok); ok {
			return v.terms[term], true
		}
	}
	return "", false
}

// suggest returns the closest single-word term within maxDistance. Ties go to
// the alphabetically first term.
func (v *Vocabulary) suggest(token string) (string, bool) {
	n := utf8.RuneCountInString(token)
	if n < minFuzzyRunes {
		return "", false
	}
	best, bestDist := "", v.maxDistance+1
	for _, w := range v.words {
		m := utf8.RuneCountInString(w)
		if m < minFuzzyRunes {
			continue
		}
		// Quick length check: a larger length gap cannot be within distance.
		if diff := m - n; diff > v.maxDistance || -diff > v.maxDistance {
			continue
		}
		if d := damerauDistance(token, w); d < bestDist {
			best, bestDist = w, d
		}
	}
	return best, best != ""
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}
