// Package models defines core data structures for fragments, intents, sessions, and turn directives.
package models

import (
	"path"
	"strings"
)

// SourceDocument describes the material a fragment was cut from.
type SourceDocument struct {
	URL          string   `json:"url" yaml:"url"`
	DisplayName  string   `json:"display_name" yaml:"display_name"`
	MediaType    string   `json:"media_type" yaml:"media_type"`
	Tags         []string `json:"tags,omitempty" yaml:"tags"`
	PageNumber   *int     `json:"page_number,omitempty" yaml:"page_number"`
	SectionLabel string   `json:"section_label,omitempty" yaml:"section_label"`
}

// Key identifies the source document. The URL is used when present, otherwise the display name.
func (d SourceDocument) Key() string {
	if d.URL != "" {
		return d.URL
	}
	return d.DisplayName
}

// FileName returns the last path element of the URL, or the display name when the URL is empty.
func (d SourceDocument) FileName() string {
	if d.URL == "" {
		return d.DisplayName
	}
	u := d.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(strings.TrimRight(u, "/"))
}

// Fragment is a retrieved unit of source text plus the scores the ranker derives for it.
type Fragment struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Source        SourceDocument `json:"source"`
	SequenceIndex int            `json:"sequence_index"`
	// DocumentFragments is the number of fragments the source document was split into.
	// Zero means unknown.
	DocumentFragments int     `json:"document_fragments,omitempty"`
	VectorScore       float64 `json:"vector_score"`

	CompletenessScore  float64 `json:"completeness_score"`
	PositionScore      float64 `json:"position_score"`
	MetadataMatchScore float64 `json:"metadata_match_score"`
	FinalScore         float64 `json:"final_score"`
}

// DocumentGroup collects relevant fragments that share a source document.
type DocumentGroup struct {
	Source      SourceDocument `json:"source"`
	DisplayName string         `json:"display_name"`
	MediaType   string         `json:"media_type"`
	Fragments   []Fragment     `json:"fragments"`
	MeanScore   float64        `json:"mean_score"`
}

// Topic is one entry of the topic index.
type Topic struct {
	Name             string   `json:"name"`
	FragmentCount    int      `json:"fragment_count"`
	MediaTypes       []string `json:"media_types"`
	ExampleDocuments []string `json:"example_documents"`
}

// CloneFragments returns a shallow copy of fragments with their tag slices copied.
func CloneFragments(fragments []Fragment) []Fragment {
	if fragments == nil {
		return nil
	}
	out := make([]Fragment, len(fragments))
	copy(out, fragments)
	for i := range out {
		if out[i].Source.Tags != nil {
			out[i].Source.Tags = append([]string(nil), out[i].Source.Tags...)
		}
	}
	return out
}

// DistinctSources counts the distinct source documents among fragments.
func DistinctSources(fragments []Fragment) int {
	seen := make(map[string]struct{}, len(fragments))
	for _, f := range fragments {
		seen[f.Source.Key()] = struct{}{}
	}
	return len(seen)
}
