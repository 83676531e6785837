package models

import "time"

// Document is a stored source document and the number of fragments it was split into.
type Document struct {
	Source        SourceDocument `json:"source"`
	FragmentCount int            `json:"fragment_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Key identifies the document. See SourceDocument.Key.
func (d *Document) Key() string {
	return d.Source.Key()
}
