package ranking

import (
	"unicode/utf8"

	"github.com/hyperjump/guia/pkg/utils"
)

// stopWords are dropped from query terms. Entries are accent-folded.
var stopWords = map[string]bool{
	// Portuguese
	"que": true, "para": true, "com": true, "uma": true, "umas": true, "uns": true,
	"dos": true, "das": true, "nos": true, "nas": true, "pelo": true, "pela": true,
	"pelos": true, "pelas": true, "por": true, "como": true, "mais": true, "mas": true,
	"sobre": true, "entre": true, "quando": true, "onde": true, "qual": true, "quais": true,
	"esse": true, "essa": true, "isso": true, "este": true, "esta": true, "isto": true,
	"aquele": true, "aquela": true, "aquilo": true, "ele": true, "ela": true, "eles": true,
	"elas": true, "voce": true, "voces": true, "meu": true, "minha": true, "seu": true,
	"sua": true, "nao": true, "sim": true, "sao": true, "ser": true, "ter": true,
	"tem": true, "foi": true, "era": true, "sera": true, "quero": true, "queria": true,
	"saber": true, "gostaria": true, "pode": true, "poderia": true, "fale": true,
	"falar": true, "explique": true, "explica": true, "explicar": true, "me": true,
	"muito": true, "pouco": true, "ate": true, "depois": true, "antes": true, "tambem": true,
	"ainda": true, "agora": true, "aqui": true, "ali": true, "seja": true, "porque": true,
	// English
	"the": true, "and": true, "for": true, "with": true, "what": true, "how": true,
	"are": true, "was": true, "this": true, "that": true, "from": true, "about": true,
}

// IsStopWord reports whether the accent-folded word w is a stop-word.
func IsStopWord(w string) bool {
	return stopWords[w]
}

// QueryAnalyzer analyzes queries into matchable terms.
type QueryAnalyzer struct{}

// NewQueryAnalyzer creates a new QueryAnalyzer.
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

// Analyze parses a query string and returns an AnalyzedQuery.
// Terms keep their first-occurrence order and are unique.
func (qa *QueryAnalyzer) Analyze(query string) *AnalyzedQuery {
	result := &AnalyzedQuery{
		Original: query,
		Terms:    []string{},
	}
	seen := make(map[string]bool)
	for _, w := range utils.Words(query) {
		if utf8.RuneCountInString(w) <= 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		result.Terms = append(result.Terms, w)
	}
	return result
}
