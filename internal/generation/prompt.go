package generation

import (
	"fmt"
	"strings"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

const systemPrompt = `Você é um assistente educacional. Responda em português do Brasil, com clareza,
usando apenas os trechos de material fornecidos quando houver. Cite o nome do material
de onde a informação veio. Se os trechos não bastarem, diga isso.`

// maxFragmentRunes bounds each fragment quoted in a prompt.
const maxFragmentRunes = 1200

// BuildPrompt renders req into a system prompt and a user prompt.
func BuildPrompt(req *Request) (system, user string) {
	var b strings.Builder

	if len(req.History) > 0 {
		b.WriteString("Conversa recente:\n")
		for _, m := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", roleLabel(m.Role), utils.Truncate(m.Content, 300))
		}
		b.WriteString("\n")
	}

	if req.InvalidChoice {
		b.WriteString("A escolha anterior do aluno não corresponde a nenhuma opção; avise isso com gentileza.\n\n")
	}

	switch req.Kind {
	case PromptAnswer:
		writeFragments(&b, req.Fragments)
		fmt.Fprintf(&b, "Pergunta do aluno: %s\n", req.Utterance)
		b.WriteString(depthInstruction(req.Preferences))
		if req.AskDepth {
			b.WriteString("Responda de forma introdutória e termine perguntando o nível de conhecimento do aluno no assunto (básico, intermediário ou avançado).\n")
		}
	case PromptMaterialList:
		fmt.Fprintf(&b, "O aluno perguntou: %s\n", req.Utterance)
		b.WriteString("Encontrei vários materiais relevantes. Apresente a lista numerada e peça que escolha um:\n")
		for i, g := range req.Groups {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, g.DisplayName, g.MediaType)
		}
	case PromptNoContent:
		fmt.Fprintf(&b, "O aluno perguntou: %s\n", req.Utterance)
		b.WriteString("Não há material sobre isso. Diga isso e sugira estes temas disponíveis: ")
		b.WriteString(strings.Join(req.Topics, ", "))
		b.WriteString("\n")
	case PromptDiscovery:
		b.WriteString("O aluno quer saber o que pode aprender. Apresente estes temas disponíveis: ")
		b.WriteString(strings.Join(req.Topics, ", "))
		b.WriteString("\n")
	case PromptCasual:
		fmt.Fprintf(&b, "Responda de forma breve e simpática a: %s\nOfereça ajuda com os estudos.\n", req.Utterance)
	case PromptGreeting:
		b.WriteString("Cumprimente o aluno e explique em uma frase que você ajuda a estudar com os materiais disponíveis.\n")
	}

	if req.Preferences.ResponseMode != "" {
		fmt.Fprintf(&b, "Formato de resposta preferido: %s.\n", req.Preferences.ResponseMode)
	}
	return systemPrompt, b.String()
}

func writeFragments(b *strings.Builder, fragments []models.Fragment) {
	if len(fragments) == 0 {
		return
	}
	b.WriteString("Trechos de material:\n")
	for i, f := range fragments {
		name := f.Source.DisplayName
		if name == "" {
			name = f.Source.FileName()
		}
		fmt.Fprintf(b, "[%d] %s", i+1, name)
		if f.Source.PageNumber != nil {
			fmt.Fprintf(b, ", p. %d", *f.Source.PageNumber)
		}
		fmt.Fprintf(b, "\n%s\n\n", utils.Truncate(f.Content, maxFragmentRunes))
	}
}

func depthInstruction(p models.Preferences) string {
	switch p.Depth {
	case models.DepthBasic:
		return "Explique de forma simples, para iniciantes, com exemplos do dia a dia.\n"
	case models.DepthIntermediate:
		return "Explique em nível intermediário.\n"
	case models.DepthAdvanced:
		return "Explique em nível avançado, com termos técnicos.\n"
	}
	return ""
}

func roleLabel(r models.Role) string {
	if r == models.RoleUser {
		return "Aluno"
	}
	return "Assistente"
}
