package intent

import (
	"strings"

	"github.com/hyperjump/guia/pkg/utils"
)

// utterance is the normalized form of one user message.
type utterance struct {
	raw    string
	tokens []string
	// text is tokens joined by single spaces.
	text     string
	question bool
}

func newUtterance(raw string) *utterance {
	tokens := utils.Words(raw)
	return &utterance{
		raw:      raw,
		tokens:   tokens,
		text:     strings.Join(tokens, " "),
		question: strings.Contains(raw, "?"),
	}
}

// phraseSet matches folded phrases on token boundaries.
type phraseSet [][]string

func newPhraseSet(phrases ...string) phraseSet {
	set := make(phraseSet, 0, len(phrases))
	for _, p := range phrases {
		if tokens := utils.Words(p); len(tokens) > 0 {
			set = append(set, tokens)
		}
	}
	return set
}

// matches reports whether any phrase occurs in tokens.
func (ps phraseSet) matches(tokens []string) bool {
	for _, p := range ps {
		if containsPhrase(tokens, p) {
			return true
		}
	}
	return false
}

// strip removes every occurrence of the phrases from tokens, longest phrases
// first, and reports how many were removed.
func (ps phraseSet) strip(tokens []string) ([]string, int) {
	out := append([]string(nil), tokens...)
	removed := 0
	for _, p := range ps.longestFirst() {
		for {
			i := indexPhrase(out, p)
			if i < 0 {
				break
			}
			out = append(out[:i], out[i+len(p):]...)
			removed++
		}
	}
	return out, removed
}

func (ps phraseSet) longestFirst() phraseSet {
	sorted := append(phraseSet(nil), ps...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j]) > len(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}

func indexPhrase(tokens, phrase []string) int {
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return i
	}
	return -1
}

// wordSet is a set of folded single words.
type wordSet map[string]bool

func newWordSet(words ...string) wordSet {
	set := make(wordSet, len(words))
	for _, w := range words {
		set[utils.FoldAccents(w)] = true
	}
	return set
}

// covers reports whether every token is in the set.
func (ws wordSet) covers(tokens []string) bool {
	for _, t := range tokens {
		if !ws[t] {
			return false
		}
	}
	return true
}

// onlyPhrases reports whether tokens consist of at least one phrase from ps and
// otherwise only filler words.
func onlyPhrases(ps phraseSet, filler wordSet, tokens []string) bool {
	rest, removed := ps.strip(tokens)
	return removed > 0 && filler.covers(rest)
}

var (
	casualPhrases = newPhraseSet(
		"oi", "olá", "ola", "oie", "opa", "eae", "e aí", "salve", "hey", "hi", "hello",
		"bom dia", "boa tarde", "boa noite", "tudo bem", "tudo bom", "tudo certo", "como vai",
		"como você está", "beleza", "blz", "obrigado", "obrigada", "brigado", "valeu", "vlw",
		"muito obrigado", "muito obrigada", "tchau", "até logo", "até mais", "até amanhã",
		"falou", "tmj", "legal", "show", "thanks", "bye",
	)
	casualFiller = newWordSet(
		"e", "ai", "aí", "você", "voce", "vc", "pra", "para", "por", "tudo", "muito", "bem",
		"então", "entao", "né", "ne", "ok", "pessoal", "professor", "professora", "assistente",
		"querido", "querida", "amigo", "amiga", "ajuda", "a", "o", "de", "sua", "seu",
	)

	discoveryPhrases = newPhraseSet(
		"o que você pode me ensinar", "o que você ensina", "o que voce ensina", "o que pode me ensinar",
		"o que você sabe", "o que você tem", "o que tem disponível", "o que tem disponivel",
		"quais materiais", "quais são os materiais", "que materiais", "quais temas", "que temas",
		"quais assuntos", "que assuntos", "quais tópicos", "que tópicos", "quais conteúdos",
		"lista de materiais", "listar materiais", "materiais disponíveis", "temas disponíveis",
		"como você pode me ajudar", "como você pode ajudar", "como você funciona",
		"o que dá para aprender", "o que da pra aprender", "what can you teach",
	)

	confirmationPhrases = newPhraseSet(
		"sim", "s", "claro", "com certeza", "pode ser", "pode", "quero", "isso", "isso mesmo",
		"exatamente", "ok", "okay", "beleza", "bora", "vamos", "vamos lá", "manda", "mande",
		"por favor", "pode mandar", "pode continuar", "continua", "yes", "sure", "aham", "uhum",
		"tá bom", "ta bom", "tá", "certo", "positivo", "quero sim", "gostaria",
	)
	confirmationFiller = newWordSet("eu", "sim", "então", "entao", "a", "o", "ai", "aí", "ver", "isso")

	// levelStatements are first-person self-assessments; they name a level on their own.
	levelStatements = map[string]phraseSet{
		"basico": newPhraseSet(
			"sou iniciante", "sou leigo", "sou leiga", "não sei nada", "nao sei nada", "sei pouco",
			"sei bem pouco", "sei muito pouco", "nunca estudei", "estou começando", "estou comecando", "comecei agora",
			"começando do zero", "comecando do zero",
		),
		"intermediario": newPhraseSet(
			"já sei um pouco", "ja sei um pouco", "sei o básico", "sei o basico", "sei mais ou menos",
			"conheço um pouco", "conheco um pouco", "já estudei", "ja estudei",
		),
		"avancado": newPhraseSet(
			"já domino", "ja domino", "domino o assunto", "domino bem", "sou experiente",
			"sou especialista", "conheço bem", "conheco bem", "sei bastante",
		),
	}

	// levelWords name a level but also occur in ordinary questions, so they count
	// only in a bare answer ("básico", "nível avançado") or shortly after a levelAnchor.
	levelWords = map[string]phraseSet{
		"basico":        newPhraseSet("básico", "basico", "iniciante", "leigo", "leiga", "do zero"),
		"intermediario": newPhraseSet("intermediário", "intermediario", "médio", "medio", "mais ou menos"),
		"avancado":      newPhraseSet("avançado", "avancado", "aprofundado", "experiente", "especialista", "expert"),
	}
	levelAnchors = newPhraseSet(
		"sou", "estou", "me considero", "meu nível", "meu nivel", "nível", "nivel",
	)
	levelFiller = newWordSet(
		"eu", "acho", "que", "o", "a", "no", "na", "um", "uma", "de", "do", "em", "mais",
		"bem", "sim", "ok", "então", "entao", "talvez", "pode", "ser", "por", "favor",
		"prefiro", "quero", "algo", "modo", "nível", "nivel", "meu", "mesmo", "e", "é",
	)

	continuationPhrases = newPhraseSet(
		"mais detalhes", "mais detalhe", "me fale mais", "fale mais", "fala mais", "conte mais",
		"mais sobre isso", "saber mais", "continue", "continua", "continuar", "prossiga",
		"explique melhor", "explica melhor", "aprofundar", "aprofunde", "aprofunda",
		"pode detalhar", "detalha", "detalhe", "mais exemplos", "outro exemplo", "um exemplo",
		"não entendi", "nao entendi", "e depois", "e o resto", "tell me more",
	)

	interestPhrases = newPhraseSet(
		"quero aprender", "quero estudar", "queria aprender", "gostaria de aprender",
		"tenho interesse", "me interesso", "me ensina", "me ensine", "me fale sobre",
		"fale sobre", "fala sobre", "me explique", "estudar sobre", "aprender sobre",
	)

	interrogativeWords = newWordSet(
		"que", "qual", "quais", "como", "quando", "onde", "porque", "quem", "quanto",
		"quantos", "quantas", "pq", "what", "how", "why", "when", "where", "who",
	)

	preferencePhrases = newPhraseSet(
		"prefiro", "eu prefiro", "gosto de", "gosto mais de", "quero em", "quero só", "quero so",
		"em formato", "no formato", "formato de", "pode ser em", "me mande em", "mande em",
		"resposta curta", "respostas curtas", "resposta longa", "mais resumido", "mais resumida",
		"resumido", "mais detalhado", "mais detalhada", "mais simples", "nível", "nivel",
		"texto corrido", "texto completo", "documento inteiro", "documento completo",
	)
)

// followsPhrase reports whether a phrase of ps starts at most gap tokens after
// the end of an occurrence of an anchor phrase.
func followsPhrase(tokens []string, anchors, ps phraseSet, gap int) bool {
	for _, a := range anchors {
		for i := 0; i+len(a) <= len(tokens); i++ {
			if !hasPhraseAt(tokens, a, i) {
				continue
			}
			end := i + len(a)
			for j := end; j <= end+gap && j < len(tokens); j++ {
				for _, p := range ps {
					if hasPhraseAt(tokens, p, j) {
						return true
					}
				}
			}
		}
	}
	return false
}

func hasPhraseAt(tokens, phrase []string, i int) bool {
	if i+len(phrase) > len(tokens) {
		return false
	}
	for j, p := range phrase {
		if tokens[i+j] != p {
			return false
		}
	}
	return true
}

// hasInterrogative reports whether u looks like a question.
func (u *utterance) hasInterrogative() bool {
	if u.question {
		return true
	}
	for _, t := range u.tokens {
		if interrogativeWords[t] {
			return true
		}
	}
	return false
}
