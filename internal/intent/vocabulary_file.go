package intent

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type vocabularyFile struct {
	Topics []string `yaml:"topics"`
}

// LoadTerms reads a vocabulary file. The file is YAML with a top-level "topics" list.
func LoadTerms(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vf vocabularyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&vf); err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return vf.Topics, nil
}

// MergeTerms returns the terms of all lists with duplicates (by exact text) removed,
// keeping the first occurrence.
func MergeTerms(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
