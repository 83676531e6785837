package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/ranking"
	"github.com/hyperjump/guia/pkg/utils"
)

// indexedFragment is the Bleve document for one fragment. Text fields are accent-folded
// before indexing and queries are folded the same way.
type indexedFragment struct {
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	SourceName string   `json:"source_name"`
	Tags       []string `json:"tags"`
	MediaType  string   `json:"media_type"`
	Document   string   `json:"document"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
	opts  Options
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an in-memory index.
// Changing the mapping requires removing the index directory.
func NewBleveIndex(path string, opts Options) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(fragmentMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index, opts: opts.withDefaults()}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index, opts: opts.withDefaults()}, nil
	}

	index, err := bleve.New(path, fragmentMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, opts: opts.withDefaults()}, nil
}

func fragmentMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("source", text)
	doc.AddFieldMappingsAt("source_name", exact)
	doc.AddFieldMappingsAt("tags", exact)
	doc.AddFieldMappingsAt("media_type", exact)
	doc.AddFieldMappingsAt("document", exact)

	im := bleve.NewIndexMapping()
	im.AddDocumentMapping("fragment", doc)
	im.DefaultType = "fragment"
	im.DefaultMapping = doc
	return im
}

func toIndexed(f *models.Fragment) indexedFragment {
	tags := make([]string, len(f.Source.Tags))
	for i, t := range f.Source.Tags {
		tags[i] = utils.FoldAccents(strings.TrimSpace(t))
	}
	name := f.Source.DisplayName + " " + f.Source.FileName()
	return indexedFragment{
		Content:    utils.FoldAccents(f.Content),
		Source:     utils.FoldAccents(name + " " + strings.Join(f.Source.Tags, " ")),
		SourceName: utils.FoldAccents(name),
		Tags:       tags,
		MediaType:  utils.FoldAccents(strings.TrimSpace(f.Source.MediaType)),
		Document:   f.Source.Key(),
	}
}

// Index adds or replaces fragments in one batch.
func (b *BleveIndex) Index(ctx context.Context, fragments []models.Fragment) error {
	batch := b.index.NewBatch()
	for i := range fragments {
		if err := batch.Index(fragments[i].ID, toIndexed(&fragments[i])); err != nil {
			return fmt.Errorf("index fragment %s: %w", fragments[i].ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Batch(batch)
}

// Search matches query terms against content and source name, scoped by filters.
// Stop-words are dropped; a query made only of stop-words returns no hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, filters models.SearchFilters) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := b.buildQuery(query, filters)
	if q == nil {
		return nil, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

func (b *BleveIndex) buildQuery(query string, filters models.SearchFilters) blevequery.Query {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	should := make([]blevequery.Query, 0, len(terms)*2)
	for _, term := range terms {
		should = append(should, b.termQuery(term, "content", 1))
		should = append(should, b.termQuery(term, "source", b.opts.SourceBoost))
	}
	match := bleve.NewDisjunctionQuery(should...)

	must := []blevequery.Query{match}
	if len(filters.MediaTypes) > 0 {
		must = append(must, anyOf("media_type", filters.MediaTypes))
	}
	if len(filters.Tags) > 0 {
		must = append(must, anyOf("tags", filters.Tags))
	}
	if filters.SourceNameContains != "" {
		wq := bleve.NewWildcardQuery("*" + stripWildcards(utils.FoldAccents(filters.SourceNameContains)) + "*")
		wq.SetField("source_name")
		must = append(must, wq)
	}
	if len(must) == 1 {
		return match
	}
	return bleve.NewConjunctionQuery(must...)
}

func (b *BleveIndex) termQuery(term, field string, boost float64) blevequery.Query {
	if b.opts.Fuzziness > 0 && len([]rune(term)) >= 5 {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(b.opts.Fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		return fq
	}
	mq := bleve.NewMatchQuery(term)
	mq.SetField(field)
	mq.SetBoost(boost)
	return mq
}

func anyOf(field string, values []string) blevequery.Query {
	qs := make([]blevequery.Query, 0, len(values))
	for _, v := range values {
		tq := bleve.NewTermQuery(utils.FoldAccents(strings.TrimSpace(v)))
		tq.SetField(field)
		qs = append(qs, tq)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func stripWildcards(s string) string {
	return strings.NewReplacer("*", "", "?", "").Replace(s)
}

// queryTerms folds query into unique words of three or more letters that are not stop-words.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range utils.Words(query) {
		if len([]rune(w)) < 3 || ranking.IsStopWord(w) || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// Delete removes fragments from the index.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// DeleteDocument removes every fragment cut from the source document with the given key.
func (b *BleveIndex) DeleteDocument(ctx context.Context, key string) error {
	tq := bleve.NewTermQuery(key)
	tq.SetField("document")
	req := bleve.NewSearchRequest(tq)
	req.Size = 10000
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("bleve search failed: %w", err)
	}
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return b.Delete(ctx, ids)
}

// DocCount returns the number of indexed fragments.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	if b.index == nil {
		return errors.New("bleve index already closed")
	}
	err := b.index.Close()
	b.index = nil
	return err
}
