// Package relevance thresholds ranked fragments and groups the survivors by source document.
package relevance

import (
	"sort"

	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/pkg/utils"
)

// Thresholds used by the orchestrator.
const (
	DefaultThreshold = 0.6
	StrictThreshold  = 0.7
)

// Result is the outcome of gating one ranked candidate list.
type Result struct {
	Relevant []models.Fragment
	// MaxScore and MeanScore are computed over all candidates, before thresholding.
	MaxScore          float64
	MeanScore         float64
	DocumentDiversity float64
	Candidates        int
	Threshold         float64
	// Groups holds the relevant fragments per source document, best group first.
	Groups []models.DocumentGroup
}

// Gate keeps fragments whose FinalScore is at least threshold.
func Gate(ranked []models.Fragment, threshold float64) *Result {
	res := &Result{
		Candidates: len(ranked),
		Threshold:  threshold,
	}

	scores := make([]float64, 0, len(ranked))
	for _, f := range ranked {
		scores = append(scores, f.FinalScore)
		if f.FinalScore > res.MaxScore {
			res.MaxScore = f.FinalScore
		}
		if f.FinalScore >= threshold {
			res.Relevant = append(res.Relevant, f)
		}
	}
	res.MeanScore = utils.Mean(scores)

	if len(res.Relevant) > 0 {
		res.DocumentDiversity = float64(models.DistinctSources(res.Relevant)) / float64(len(res.Relevant))
	}
	res.Groups = GroupByDocument(res.Relevant)
	return res
}

// NoContent reports whether nothing passed the threshold.
func (r *Result) NoContent() bool {
	return len(r.Relevant) == 0
}

// SingleDocument reports whether every relevant fragment comes from one document.
func (r *Result) SingleDocument() bool {
	return len(r.Groups) == 1
}

// Stats converts the result into the summary carried by a directive.
func (r *Result) Stats() *models.GateStats {
	return &models.GateStats{
		Threshold:         r.Threshold,
		MaxScore:          r.MaxScore,
		MeanScore:         r.MeanScore,
		DocumentDiversity: r.DocumentDiversity,
		Candidates:        r.Candidates,
		Relevant:          len(r.Relevant),
	}
}

// GroupByDocument groups fragments by source document. Fragments keep their
// input order within a group; groups are ordered by their best FinalScore,
// ties broken by first appearance.
func GroupByDocument(fragments []models.Fragment) []models.DocumentGroup {
	if len(fragments) == 0 {
		return nil
	}
	index := make(map[string]int)
	var groups []models.DocumentGroup
	best := []float64{}
	for _, f := range fragments {
		key := f.Source.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.DocumentGroup{
				Source:      f.Source,
				DisplayName: displayName(f.Source),
				MediaType:   f.Source.MediaType,
			})
			best = append(best, f.FinalScore)
		}
		groups[i].Fragments = append(groups[i].Fragments, f)
		if f.FinalScore > best[i] {
			best[i] = f.FinalScore
		}
	}

	for i := range groups {
		scores := make([]float64, len(groups[i].Fragments))
		for j, f := range groups[i].Fragments {
			scores[j] = f.FinalScore
		}
		groups[i].MeanScore = utils.Mean(scores)
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return best[order[a]] > best[order[b]]
	})
	out := make([]models.DocumentGroup, len(groups))
	for i, idx := range order {
		out[i] = groups[idx]
	}
	return out
}

func displayName(src models.SourceDocument) string {
	if src.DisplayName != "" {
		return src.DisplayName
	}
	return src.FileName()
}
