// Package cli renders turn results, topics and ingestion stats for the guia command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/guia/internal/indexer"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/turn"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// WriteTurn writes a turn result to w in the given format.
func WriteTurn(w io.Writer, res *turn.Result, format OutputFormat) error {
	if format == OutputJSON {
		out := struct {
			*turn.Result
			Failure string `json:"failure,omitempty"`
		}{Result: res}
		if res.Failure != nil {
			out.Failure = res.Failure.Error()
		}
		return writeJSON(w, out)
	}
	writeDirectiveText(w, res.Directive)
	return nil
}

func writeDirectiveText(w io.Writer, d *models.Directive) {
	if d == nil {
		return
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(d.Text))
	switch d.Kind {
	case models.DirectiveOfferChoice:
		fmt.Fprintln(w)
		for i, g := range d.Groups {
			fmt.Fprintf(w, "  %d. %s (%s, %d %s)\n", i+1, g.DisplayName, mediaLabel(g.MediaType), len(g.Fragments), plural(len(g.Fragments), "trecho", "trechos"))
		}
	case models.DirectiveAnswer:
		if sources := sourceNames(d.Fragments); len(sources) > 0 {
			fmt.Fprintf(w, "\nFontes: %s\n", strings.Join(sources, "; "))
		}
	case models.DirectiveSuggestTopics, models.DirectiveDiscovery, models.DirectiveDegraded:
		if len(d.Topics) > 0 {
			fmt.Fprintf(w, "\nTemas disponíveis: %s\n", strings.Join(d.Topics, ", "))
		}
	}
	fmt.Fprintln(w)
}

// sourceNames lists the distinct sources of fragments in order of appearance.
func sourceNames(fragments []models.Fragment) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range fragments {
		key := f.Source.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		name := f.Source.DisplayName
		if name == "" {
			name = f.Source.FileName()
		}
		if f.Source.PageNumber != nil {
			name = fmt.Sprintf("%s, p. %d", name, *f.Source.PageNumber)
		}
		out = append(out, name)
	}
	return out
}

func mediaLabel(m string) string {
	if m == "" {
		return "material"
	}
	return m
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// WriteTopics writes the topic index.
func WriteTopics(w io.Writer, topics []models.Topic, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"topics": topics})
	}
	if len(topics) == 0 {
		fmt.Fprintln(w, "Nenhum tema indexado.")
		return nil
	}
	for _, t := range topics {
		fmt.Fprintf(w, "%s", t.Name)
		if t.FragmentCount > 0 {
			fmt.Fprintf(w, " (%d %s", t.FragmentCount, plural(t.FragmentCount, "trecho", "trechos"))
			if len(t.MediaTypes) > 0 {
				fmt.Fprintf(w, "; %s", strings.Join(t.MediaTypes, ", "))
			}
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w)
		for _, ex := range t.ExampleDocuments {
			fmt.Fprintf(w, "    %s\n", Truncate(ex, 80))
		}
	}
	return nil
}

// WriteIngestStats writes the summary of an ingestion run.
func WriteIngestStats(w io.Writer, stats indexer.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Indexed %d documents (%d fragments)", stats.Documents, stats.Fragments)
	if stats.Failed > 0 {
		fmt.Fprintf(w, ", %d failed", stats.Failed)
	}
	fmt.Fprintln(w)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate shortens s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
