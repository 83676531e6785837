package indexer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/guia/internal/models"
)

// Manifest lists the learning materials to ingest.
type Manifest struct {
	Materials []Material `yaml:"materials"`
}

// Material is one source document. Its text comes from Content, from the file at Path,
// or from Sections when the document has page or chapter structure.
type Material struct {
	URL         string    `json:"url,omitempty" yaml:"url"`
	DisplayName string    `json:"display_name,omitempty" yaml:"display_name"`
	MediaType   string    `json:"media_type,omitempty" yaml:"media_type"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags"`
	Content     string    `json:"content,omitempty" yaml:"content"`
	Path        string    `json:"path,omitempty" yaml:"path"`
	Sections    []Section `json:"sections,omitempty" yaml:"sections"`
}

// Section is a labelled part of a material, optionally tied to a page number.
type Section struct {
	Label   string `json:"label,omitempty" yaml:"label"`
	Page    *int   `json:"page,omitempty" yaml:"page"`
	Content string `json:"content,omitempty" yaml:"content"`
	Path    string `json:"path,omitempty" yaml:"path"`
}

// mediaByExtension infers a media type when the manifest omits one.
var mediaByExtension = map[string]string{
	".pdf":  "pdf",
	".mp4":  "video",
	".webm": "video",
	".mov":  "video",
	".mp3":  "audio",
	".ogg":  "audio",
	".wav":  "audio",
	".ppt":  "slides",
	".pptx": "slides",
	".odp":  "slides",
	".html": "texto",
	".txt":  "texto",
	".md":   "texto",
}

// LoadManifest reads and validates a YAML manifest. Unknown fields are rejected.
func LoadManifest(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i := range m.Materials {
		if err := m.Materials[i].Prepare(); err != nil {
			return nil, fmt.Errorf("material %d: %w", i+1, err)
		}
	}
	return &m, nil
}

// Prepare fills inferred fields and validates the material.
func (m *Material) Prepare() error {
	m.applyDefaults()
	return m.Validate()
}

// HasFileReferences reports whether any text of the material is read from a file.
func (m *Material) HasFileReferences() bool {
	if m.Path != "" {
		return true
	}
	for _, s := range m.Sections {
		if s.Path != "" {
			return true
		}
	}
	return false
}

func (m *Material) applyDefaults() {
	m.URL = strings.TrimSpace(m.URL)
	m.DisplayName = strings.TrimSpace(m.DisplayName)
	if m.DisplayName == "" && m.URL != "" {
		m.DisplayName = m.Source().FileName()
	}
	if m.MediaType == "" {
		ref := m.URL
		if ref == "" {
			ref = m.Path
		}
		if i := strings.IndexAny(ref, "?#"); i >= 0 {
			ref = ref[:i]
		}
		m.MediaType = mediaByExtension[strings.ToLower(path.Ext(ref))]
	}
	if m.MediaType == "" {
		m.MediaType = "texto"
	}
}

// Validate checks that the material identifies its source and has exactly one text origin.
func (m *Material) Validate() error {
	if m.URL == "" && m.DisplayName == "" {
		return errors.New("url or display_name is required")
	}
	origins := 0
	if strings.TrimSpace(m.Content) != "" {
		origins++
	}
	if m.Path != "" {
		origins++
	}
	if len(m.Sections) > 0 {
		origins++
	}
	if origins != 1 {
		return fmt.Errorf("%s: exactly one of content, path or sections is required", m.Source().Key())
	}
	for i, s := range m.Sections {
		if strings.TrimSpace(s.Content) == "" && s.Path == "" {
			return fmt.Errorf("%s: section %d has no content", m.Source().Key(), i+1)
		}
	}
	return nil
}

// Source returns the source document described by the material.
func (m *Material) Source() models.SourceDocument {
	return models.SourceDocument{
		URL:         m.URL,
		DisplayName: m.DisplayName,
		MediaType:   m.MediaType,
		Tags:        m.Tags,
	}
}

// parts returns the material's text origins as sections.
func (m *Material) parts() []Section {
	if len(m.Sections) == 0 {
		return []Section{{Content: m.Content, Path: m.Path}}
	}
	return m.Sections
}

// readText returns the section text, reading Path relative to baseDir.
func readText(s Section, baseDir string) (string, error) {
	if s.Path == "" {
		return s.Content, nil
	}
	p := s.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.Path, err)
	}
	return string(data), nil
}
