package ranking

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// Ranker combines all scorers to rank fragments, and owns deduplication and selection.
type Ranker struct {
	config             *RankingConfig
	analyzer           *QueryAnalyzer
	completenessScorer *CompletenessScorer
	positionScorer     *PositionScorer
	metadataScorer     *MetadataScorer
}

// NewRanker creates a new Ranker with the given configuration.
func NewRanker(config *RankingConfig) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}
	config.ApplyDefaults()

	return &Ranker{
		config:             config,
		analyzer:           NewQueryAnalyzer(),
		completenessScorer: NewCompletenessScorer(config),
		positionScorer:     NewPositionScorer(config),
		metadataScorer:     NewMetadataScorer(config),
	}
}

// Config returns the ranker configuration.
func (r *Ranker) Config() *RankingConfig {
	return r.config
}

// AnalyzeQuery parses and analyzes a query string.
func (r *Ranker) AnalyzeQuery(query string) *AnalyzedQuery {
	return r.analyzer.Analyze(query)
}

// Rank scores every fragment against query and returns a new slice sorted by
// FinalScore descending. The input slice is not modified.
func (r *Ranker) Rank(fragments []models.Fragment, query string) []models.Fragment {
	analyzed := r.analyzer.Analyze(query)
	out := models.CloneFragments(fragments)
	for i := range out {
		r.score(analyzed, &out[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}

func (r *Ranker) score(query *AnalyzedQuery, f *models.Fragment) {
	ctx := &ScoringContext{Query: query, Fragment: f}

	f.VectorScore = clip(f.VectorScore)
	f.CompletenessScore = r.completenessScorer.Score(ctx)
	f.PositionScore = r.positionScorer.Score(ctx)
	f.MetadataMatchScore = r.metadataScorer.Score(ctx)

	// Score = (Wv * Sv) + (Wc * Sc) + (Wp * Sp) + (Wm * Sm)
	f.FinalScore = clip(r.config.VectorWeight*f.VectorScore +
		r.config.CompletenessWeight*f.CompletenessScore +
		r.config.PositionWeight*f.PositionScore +
		r.config.MetadataWeight*f.MetadataMatchScore)
}

// Deduplicate drops near-duplicate fragments. Fragments are visited in
// FinalScore order and one is kept only if its similarity to every kept
// fragment is at most DuplicateThreshold. Output is sorted by FinalScore.
func (r *Ranker) Deduplicate(fragments []models.Fragment) []models.Fragment {
	ordered := models.CloneFragments(fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FinalScore > ordered[j].FinalScore
	})

	kept := make([]models.Fragment, 0, len(ordered))
	keptTokens := make([]map[string]struct{}, 0, len(ordered))
	for _, f := range ordered {
		tokens := tokenSet(f.Content)
		duplicate := false
		for _, other := range keptTokens {
			if jaccard(tokens, other) > r.config.DuplicateThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, f)
		keptTokens = append(keptTokens, tokens)
	}
	return kept
}

// SelectBest picks up to k fragments in FinalScore order, at most
// PerDocumentCap per source document. When the cap leaves fewer than k,
// the rest is filled from the ranked list ignoring the cap. The result
// keeps overall score order and never repeats a fragment.
func (r *Ranker) SelectBest(fragments []models.Fragment, k int) []models.Fragment {
	if k <= 0 || len(fragments) == 0 {
		return nil
	}
	ranked := models.CloneFragments(fragments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	selected := make([]bool, len(ranked))
	perDoc := make(map[string]int)
	count := 0
	for i, f := range ranked {
		if count == k {
			break
		}
		key := f.Source.Key()
		if perDoc[key] >= r.config.PerDocumentCap {
			continue
		}
		selected[i] = true
		perDoc[key]++
		count++
	}
	for i := range ranked {
		if count == k {
			break
		}
		if !selected[i] {
			selected[i] = true
			count++
		}
	}

	out := make([]models.Fragment, 0, count)
	for i, f := range ranked {
		if selected[i] {
			out = append(out, f)
		}
	}
	return out
}

// MergeContiguous merges runs of fragments from the same source document whose
// sequence indices are consecutive. A merged fragment concatenates content in
// index order and carries the mean of its constituents' scores. Singletons pass
// through unchanged. The result is sorted by FinalScore descending.
func (r *Ranker) MergeContiguous(fragments []models.Fragment) []models.Fragment {
	byDoc := make(map[string][]models.Fragment)
	var order []string
	for _, f := range models.CloneFragments(fragments) {
		key := f.Source.Key()
		if _, ok := byDoc[key]; !ok {
			order = append(order, key)
		}
		byDoc[key] = append(byDoc[key], f)
	}

	var out []models.Fragment
	for _, key := range order {
		group := byDoc[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].SequenceIndex < group[j].SequenceIndex
		})
		start := 0
		for i := 1; i <= len(group); i++ {
			if i < len(group) && group[i].SequenceIndex == group[i-1].SequenceIndex+1 {
				continue
			}
			out = append(out, mergeRun(group[start:i]))
			start = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}

// mergedIDSeparator joins the constituent IDs of a merged fragment.
const mergedIDSeparator = "+"

// ConstituentIDs returns the IDs of the fragments merged into id, or id itself.
func ConstituentIDs(id string) []string {
	return strings.Split(id, mergedIDSeparator)
}

func mergeRun(run []models.Fragment) models.Fragment {
	if len(run) == 1 {
		return run[0]
	}
	merged := run[0]
	ids := make([]string, len(run))
	contents := make([]string, len(run))
	var vec, comp, pos, meta, final []float64
	for i, f := range run {
		ids[i] = f.ID
		contents[i] = f.Content
		vec = append(vec, f.VectorScore)
		comp = append(comp, f.CompletenessScore)
		pos = append(pos, f.PositionScore)
		meta = append(meta, f.MetadataMatchScore)
		final = append(final, f.FinalScore)
	}
	merged.ID = strings.Join(ids, mergedIDSeparator)
	merged.Content = strings.Join(contents, "\n")
	merged.VectorScore = utils.Mean(vec)
	merged.CompletenessScore = utils.Mean(comp)
	merged.PositionScore = utils.Mean(pos)
	merged.MetadataMatchScore = utils.Mean(meta)
	merged.FinalScore = utils.Mean(final)
	return merged
}

// JaccardSimilarity returns |A∩B| / |A∪B| over the lower-cased, punctuation-stripped
// tokens longer than two runes of a and b. Two texts without such tokens score 0.
func JaccardSimilarity(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range utils.Words(s) {
		if utf8.RuneCountInString(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
