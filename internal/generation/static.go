package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/guia/pkg/utils"
)

// StaticGenerator composes replies from canned text and the fragments
// themselves. It never fails and is the last link of a Chain.
type StaticGenerator struct {
	// SnippetRunes bounds each quoted fragment. Zero means 400.
	SnippetRunes int
}

// NewStaticGenerator creates a StaticGenerator.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{SnippetRunes: 400}
}

// Name returns the generator name.
func (g *StaticGenerator) Name() string {
	return "static"
}

// Generate returns canned text for req.
func (g *StaticGenerator) Generate(_ context.Context, req *Request) (string, error) {
	var b strings.Builder
	if req.InvalidChoice {
		b.WriteString("Não encontrei essa opção na lista. ")
	}

	switch req.Kind {
	case PromptAnswer:
		if len(req.Fragments) == 0 {
			b.WriteString("Não tenho trechos para mostrar agora.")
			break
		}
		fmt.Fprintf(&b, "Veja o que encontrei em \"%s\":\n\n", sourceName(req.Fragments[0].Source.DisplayName, req.Fragments[0].Source.FileName()))
		limit := g.snippetRunes()
		for _, f := range req.Fragments {
			b.WriteString(utils.Truncate(utils.NormalizeSpace(f.Content), limit))
			b.WriteString("\n\n")
		}
		if req.AskDepth {
			b.WriteString("Qual é o seu nível no assunto: básico, intermediário ou avançado?")
			break
		}
		b.WriteString("Quer que eu aprofunde algum ponto?")
	case PromptMaterialList:
		b.WriteString("Encontrei estes materiais:\n")
		for i, grp := range req.Groups {
			fmt.Fprintf(&b, "%d. %s", i+1, grp.DisplayName)
			if grp.MediaType != "" {
				fmt.Fprintf(&b, " (%s)", grp.MediaType)
			}
			b.WriteString("\n")
		}
		b.WriteString("Qual deles você quer ver? Responda com o número.")
	case PromptNoContent:
		b.WriteString("Não encontrei material sobre isso.")
		if len(req.Topics) > 0 {
			fmt.Fprintf(&b, " Posso ajudar com: %s.", strings.Join(req.Topics, ", "))
		}
	case PromptDiscovery:
		b.WriteString("Posso ajudar você a estudar")
		if len(req.Topics) > 0 {
			fmt.Fprintf(&b, " estes temas: %s", strings.Join(req.Topics, ", "))
		}
		b.WriteString(". Sobre o que quer aprender?")
	case PromptCasual:
		b.WriteString("Olá! Estou aqui para ajudar nos seus estudos. Sobre o que quer aprender?")
	case PromptGreeting:
		b.WriteString("Olá! Eu ajudo você a estudar com os materiais disponíveis. Por onde quer começar?")
	default:
		b.WriteString("Como posso ajudar nos seus estudos?")
	}
	return b.String(), nil
}

func (g *StaticGenerator) snippetRunes() int {
	if g.SnippetRunes > 0 {
		return g.SnippetRunes
	}
	return 400
}

func sourceName(display, file string) string {
	if display != "" {
		return display
	}
	return file
}
