package models

import (
	"strings"

	"github.com/hyperjump/guia/pkg/utils"
)

// SearchFilters scope a vector search. Empty fields do not filter.
type SearchFilters struct {
	Tags               []string `json:"tags,omitempty"`
	MediaTypes         []string `json:"media_types,omitempty"`
	SourceNameContains string   `json:"source_name_contains,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (sf SearchFilters) IsEmpty() bool {
	return len(sf.Tags) == 0 && len(sf.MediaTypes) == 0 && sf.SourceNameContains == ""
}

// Matches reports whether f passes every set filter. Tags and media types match when any
// listed value equals the fragment's (accent- and case-insensitively); the source name
// filter is a substring test on the display name and file name.
func (sf SearchFilters) Matches(f *Fragment) bool {
	if len(sf.MediaTypes) > 0 && !containsFolded(sf.MediaTypes, f.Source.MediaType) {
		return false
	}
	if len(sf.Tags) > 0 {
		found := false
		for _, tag := range f.Source.Tags {
			if containsFolded(sf.Tags, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if sf.SourceNameContains != "" {
		needle := utils.FoldAccents(sf.SourceNameContains)
		if !strings.Contains(utils.FoldAccents(f.Source.DisplayName), needle) &&
			!strings.Contains(utils.FoldAccents(f.Source.FileName()), needle) {
			return false
		}
	}
	return true
}

func containsFolded(values []string, v string) bool {
	v = utils.FoldAccents(strings.TrimSpace(v))
	for _, x := range values {
		if utils.FoldAccents(strings.TrimSpace(x)) == v {
			return true
		}
	}
	return false
}
