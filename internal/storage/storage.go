// Package storage persists source documents and their fragments, and aggregates the topic index.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/guia/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and fragment persistence operations.
type Storage interface {
	// SaveDocument stores doc and replaces all of its fragments atomically.
	SaveDocument(ctx context.Context, doc *models.Document, fragments []models.Fragment) error
	GetDocument(ctx context.Context, key string) (*models.Document, error)
	DeleteDocument(ctx context.Context, key string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// GetFragments returns the fragments with the given IDs in the order requested.
	// Unknown IDs are skipped.
	GetFragments(ctx context.Context, ids []string) ([]models.Fragment, error)
	FragmentsByDocument(ctx context.Context, key string) ([]models.Fragment, error)
	// FragmentIDs returns the IDs of fragments whose source document passes filters.
	FragmentIDs(ctx context.Context, filters models.SearchFilters) (map[string]struct{}, error)

	// ListTopics aggregates document tags into topics ordered by fragment count.
	ListTopics(ctx context.Context) ([]models.Topic, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountFragments(ctx context.Context) (int64, error)

	Close() error
}
