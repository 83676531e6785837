package intent

import (
	"strconv"
	"strings"

	"github.com/hyperjump/guia/pkg/utils"
)

var ordinals = map[string]int{
	"primeiro": 1, "primeira": 1, "um": 1, "1o": 1, "1a": 1,
	"segundo": 2, "segunda": 2, "dois": 2, "duas": 2,
	"terceiro": 3, "terceira": 3, "tres": 3,
	"quarto": 4, "quarta": 4, "quatro": 4,
	"quinto": 5, "quinta": 5, "cinco": 5,
	"sexto": 6, "sexta": 6, "seis": 6,
	"setimo": 7, "setima": 7, "sete": 7,
	"oitavo": 8, "oitava": 8, "oito": 8,
	"nono": 9, "nona": 9, "nove": 9,
	"decimo": 10, "decima": 10, "dez": 10,
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
}

// selectionFiller may surround a selection without changing it.
var selectionFiller = newWordSet(
	"o", "a", "os", "as", "no", "na", "do", "da", "de", "e", "eu", "me", "quero", "queria",
	"escolho", "prefiro", "vou", "de", "ser", "pode", "fico", "com", "opcao", "opção",
	"numero", "número", "n", "nº", "item", "material", "documento", "arquivo", "link",
	"esse", "essa", "este", "esta", "por", "favor", "mostra", "mostre", "abre", "abrir",
	"pfv", "pf", "ok", "entao", "então", "the", "one", "option",
)

// ParseSelection reads a 1-based numeric or ordinal selection out of text,
// e.g. "2", "segundo", "o segundo", "opção 2", "2º". "último" resolves to
// options when options > 0. ok is false when text is not a selection at all;
// range checking is left to the caller.
func ParseSelection(text string, options int) (n int, ok bool) {
	var candidate []string
	for _, tok := range utils.Words(text) {
		if selectionFiller[tok] {
			continue
		}
		candidate = append(candidate, tok)
	}
	if len(candidate) != 1 {
		return 0, false
	}
	tok := candidate[0]

	if tok == "ultimo" || tok == "ultima" || tok == "last" {
		if options > 0 {
			return options, true
		}
		return 0, false
	}
	if v, found := ordinals[tok]; found {
		return v, true
	}
	// "2º", "2ª", "2o"
	digits := strings.TrimRight(tok, "ºªoa")
	if digits == "" {
		return 0, false
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ResolveSelection parses text and checks it against the number of options,
// returning the 0-based index. parsed reports whether text looked like a
// selection, valid whether it was in range.
func ResolveSelection(text string, options int) (index int, parsed, valid bool) {
	n, ok := ParseSelection(text, options)
	if !ok {
		return -1, false, false
	}
	if n < 1 || n > options {
		return -1, true, false
	}
	return n - 1, true, true
}
