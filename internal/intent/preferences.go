package intent

import (
	"github.com/hyperjump/guia/internal/models"
)

// mediaCues maps folded utterance phrases to media types.
var mediaCues = []struct {
	phrases   phraseSet
	mediaType string
}{
	{newPhraseSet("vídeo", "vídeos", "videoaula", "videoaulas", "youtube"), "video"},
	{newPhraseSet("pdf", "pdfs", "apostila", "apostilas"), "pdf"},
	{newPhraseSet("em texto", "por escrito", "artigo", "artigos", "leitura"), "texto"},
	{newPhraseSet("áudio", "áudios", "podcast", "podcasts"), "audio"},
	{newPhraseSet("slide", "slides", "apresentação", "apresentações"), "slides"},
}

var responseModeCues = []struct {
	phrases phraseSet
	mode    string
}{
	{newPhraseSet("resposta curta", "respostas curtas", "resumido", "resumida", "mais resumido", "mais resumida", "direto ao ponto"), models.ResponseModeSummary},
	{newPhraseSet("mais detalhado", "mais detalhada", "resposta longa", "respostas longas", "detalhadamente", "passo a passo"), models.ResponseModeDetailed},
	{newPhraseSet("texto corrido", "texto completo", "documento inteiro", "documento completo", "trecho completo", "em sequência"), models.ResponseModeDocument},
}

// ExtractPreferences scans text for explicit media-type, depth and response-mode
// cues. Fields without a cue are left nil so the update can be shallow-merged.
func ExtractPreferences(text string) models.PreferencesUpdate {
	u := newUtterance(text)
	var update models.PreferencesUpdate

	for _, cue := range mediaCues {
		if cue.phrases.matches(u.tokens) {
			update.PreferredMediaTypes = append(update.PreferredMediaTypes, cue.mediaType)
		}
	}
	if level, ok := matchLevel(u.tokens); ok {
		update.Depth = &level
	}
	for _, cue := range responseModeCues {
		if cue.phrases.matches(u.tokens) {
			mode := cue.mode
			update.ResponseMode = &mode
			break
		}
	}
	return update
}

// levelAnchorGap is how many tokens may separate an anchor from the level word,
// as in "meu nível é básico" or "sou bem leigo".
const levelAnchorGap = 2

// matchLevel returns the depth the learner assigns to themselves. Statements win
// over bare level words, and advanced cues are checked before basic ones so
// "não sou iniciante, já domino" reads as advanced.
func matchLevel(tokens []string) (string, bool) {
	order := []string{models.DepthAdvanced, models.DepthIntermediate, models.DepthBasic}
	for _, level := range order {
		if levelStatements[level].matches(tokens) {
			return level, true
		}
	}
	bare := onlyLevelWords(tokens)
	for _, level := range order {
		words := levelWords[level]
		if !words.matches(tokens) {
			continue
		}
		if bare || followsPhrase(tokens, levelAnchors, words, levelAnchorGap) {
			return level, true
		}
	}
	return "", false
}

// onlyLevelWords reports whether tokens are level words plus filler, as in a
// reply to "qual o seu nível?".
func onlyLevelWords(tokens []string) bool {
	rest := tokens
	removed := 0
	for _, words := range levelWords {
		var n int
		rest, n = words.strip(rest)
		removed += n
	}
	return removed > 0 && levelFiller.covers(rest)
}
