package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// maxExampleDocuments bounds Topic.ExampleDocuments.
const maxExampleDocuments = 3

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	memory := dbPath == ":memory:"
	if dir := filepath.Dir(dbPath); !memory && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		display_name TEXT NOT NULL,
		media_type TEXT NOT NULL,
		tags TEXT,
		fragment_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS document_tags (
		document_key TEXT NOT NULL,
		tag_key TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (document_key, tag_key),
		FOREIGN KEY (document_key) REFERENCES documents(key) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_document_tags_tag ON document_tags(tag_key);

	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		document_key TEXT NOT NULL,
		content TEXT NOT NULL,
		sequence_index INTEGER NOT NULL,
		page_number INTEGER,
		section_label TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_key) REFERENCES documents(key) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_fragments_document ON fragments(document_key, sequence_index);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveDocument upserts doc, replaces its tags and fragments, and sets doc.FragmentCount.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *models.Document, fragments []models.Fragment) error {
	key := doc.Key()
	if key == "" {
		return errors.New("document has neither url nor display name")
	}
	tagsJSON, err := json.Marshal(doc.Source.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.FragmentCount = len(fragments)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (key, url, display_name, media_type, tags, fragment_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET url = excluded.url, display_name = excluded.display_name,
		   media_type = excluded.media_type, tags = excluded.tags,
		   fragment_count = excluded.fragment_count, updated_at = excluded.updated_at`,
		key, doc.Source.URL, doc.Source.DisplayName, doc.Source.MediaType, string(tagsJSON),
		doc.FragmentCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_tags WHERE document_key = ?`, key); err != nil {
		return err
	}
	for _, tag := range doc.Source.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO document_tags (document_key, tag_key, tag) VALUES (?, ?, ?)`,
			key, utils.FoldAccents(tag), tag,
		); err != nil {
			return fmt.Errorf("failed to save tag %q: %w", tag, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE document_key = ?`, key); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fragments (id, document_key, content, sequence_index, page_number, section_label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range fragments {
		var page sql.NullInt64
		if f.Source.PageNumber != nil {
			page = sql.NullInt64{Int64: int64(*f.Source.PageNumber), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, f.ID, key, f.Content, f.SequenceIndex, page, f.Source.SectionLabel, now); err != nil {
			return fmt.Errorf("failed to save fragment %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

const documentColumns = `key, url, display_name, media_type, tags, fragment_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc      models.Document
		key      string
		tagsJSON sql.NullString
	)
	err := row.Scan(&key, &doc.Source.URL, &doc.Source.DisplayName, &doc.Source.MediaType,
		&tagsJSON, &doc.FragmentCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &doc.Source.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &doc, nil
}

// GetDocument returns a document by key.
func (s *SQLiteStorage) GetDocument(ctx context.Context, key string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE key = ?`, key)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	return doc, err
}

// DeleteDocument removes a document with its tags and fragments.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	return nil
}

// ListDocuments returns documents ordered by display name.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY display_name, key LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

const fragmentQuery = `
	SELECT f.id, f.content, f.sequence_index, f.page_number, f.section_label,
	       d.url, d.display_name, d.media_type, d.tags, d.fragment_count
	FROM fragments f JOIN documents d ON d.key = f.document_key`

func scanFragments(rows *sql.Rows) ([]models.Fragment, error) {
	defer rows.Close()
	var out []models.Fragment
	for rows.Next() {
		var (
			f        models.Fragment
			page     sql.NullInt64
			section  sql.NullString
			tagsJSON sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Content, &f.SequenceIndex, &page, &section,
			&f.Source.URL, &f.Source.DisplayName, &f.Source.MediaType, &tagsJSON, &f.DocumentFragments); err != nil {
			return nil, err
		}
		if page.Valid {
			n := int(page.Int64)
			f.Source.PageNumber = &n
		}
		f.Source.SectionLabel = section.String
		if tagsJSON.Valid && tagsJSON.String != "" {
			_ = json.Unmarshal([]byte(tagsJSON.String), &f.Source.Tags)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFragments loads fragments by ID, preserving the order of ids.
func (s *SQLiteStorage) GetFragments(ctx context.Context, ids []string) ([]models.Fragment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx, fragmentQuery+` WHERE f.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	found, err := scanFragments(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Fragment, len(found))
	for _, f := range found {
		byID[f.ID] = f
	}
	out := make([]models.Fragment, 0, len(found))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
			delete(byID, id)
		}
	}
	return out, nil
}

// FragmentsByDocument returns the fragments of a document in sequence order.
func (s *SQLiteStorage) FragmentsByDocument(ctx context.Context, key string) ([]models.Fragment, error) {
	rows, err := s.db.QueryContext(ctx, fragmentQuery+` WHERE f.document_key = ? ORDER BY f.sequence_index`, key)
	if err != nil {
		return nil, err
	}
	return scanFragments(rows)
}

// FragmentIDs applies filters to every document and collects the fragment IDs of the matches.
func (s *SQLiteStorage) FragmentIDs(ctx context.Context, filters models.SearchFilters) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents`)
	if err != nil {
		return nil, err
	}
	var keys []any
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		f := models.Fragment{Source: doc.Source}
		if filters.Matches(&f) {
			keys = append(keys, doc.Key())
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	if len(keys) == 0 {
		return ids, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	idRows, err := s.db.QueryContext(ctx, `SELECT id FROM fragments WHERE document_key IN (`+placeholders+`)`, keys...)
	if err != nil {
		return nil, err
	}
	defer idRows.Close()
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, idRows.Err()
}

// ListTopics groups documents by tag. Tags differing only in case or accents form one topic,
// named after the first spelling seen.
func (s *SQLiteStorage) ListTopics(ctx context.Context) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tag_key, MIN(t.tag), d.display_name, d.media_type, d.fragment_count
		FROM document_tags t JOIN documents d ON d.key = t.document_key
		GROUP BY t.tag_key, d.key
		ORDER BY t.tag_key, d.fragment_count DESC, d.display_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		topics []models.Topic
		index  = make(map[string]int)
	)
	for rows.Next() {
		var (
			tagKey, tag, display, media string
			count                       int
		)
		if err := rows.Scan(&tagKey, &tag, &display, &media, &count); err != nil {
			return nil, err
		}
		i, ok := index[tagKey]
		if !ok {
			i = len(topics)
			index[tagKey] = i
			topics = append(topics, models.Topic{Name: tag})
		}
		t := &topics[i]
		t.FragmentCount += count
		if media != "" && !contains(t.MediaTypes, media) {
			t.MediaTypes = append(t.MediaTypes, media)
		}
		if len(t.ExampleDocuments) < maxExampleDocuments {
			t.ExampleDocuments = append(t.ExampleDocuments, display)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range topics {
		sort.Strings(topics[i].MediaTypes)
	}
	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].FragmentCount > topics[j].FragmentCount
	})
	return topics, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountFragments returns the total number of fragments.
func (s *SQLiteStorage) CountFragments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
