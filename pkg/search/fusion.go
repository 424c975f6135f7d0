package search

import (
	"sort"
	"strings"

	"github.com/contexto-ai/contexto/pkg/types"
)

// rrfK dampens the influence of top ranks in reciprocal rank fusion.
const rrfK = 60

// fuseRRF merges per-strategy rankings with reciprocal rank fusion. Each list
// is ordered by its native score descending; an item's fused score is the sum
// of 1/(k+rank) over every list it appears in, with 1-based ranks. Items are
// identified by (item_type, item_id), so the same message surfacing from two
// strategies is one fused result carrying both source labels.
func fuseRRF(rankings [][]*types.SearchResult) []*types.SearchResult {
	type fusedEntry struct {
		result  *types.SearchResult
		score   float64
		sources []string
		order   int
	}

	entries := map[string]*fusedEntry{}
	for _, ranking := range rankings {
		sorted := make([]*types.SearchResult, len(ranking))
		copy(sorted, ranking)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

		for rank, r := range sorted {
			key := r.Key()
			e, ok := entries[key]
			if !ok {
				e = &fusedEntry{result: r, order: len(entries)}
				entries[key] = e
			}
			e.score += 1.0 / float64(rrfK+rank+1)
			e.sources = append(e.sources, r.Source)
		}
	}

	fused := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, e)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].order < fused[j].order
	})

	results := make([]*types.SearchResult, len(fused))
	for i, e := range fused {
		r := *e.result
		r.Score = e.score
		r.Source = strings.Join(e.sources, "+")
		results[i] = &r
	}
	return results
}
