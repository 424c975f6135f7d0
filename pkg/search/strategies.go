package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/contexto-ai/contexto/pkg/types"
	"github.com/contexto-ai/contexto/pkg/vector"
)

// semanticSearch embeds the query and ranks stored message vectors by cosine
// similarity. Any upstream failure degrades to an empty contribution with a
// WARN log; semantic search never fails the request.
func (s *HybridSearcher) semanticSearch(ctx context.Context, req types.SearchRequest) []*types.SearchResult {
	if s.vectors == nil || s.embedder == nil {
		return nil
	}
	ctx, cancel := s.strategyContext(ctx)
	defer cancel()

	queryVec, err := s.embedder.EmbedSingle(ctx, req.Query)
	if err != nil {
		s.logger.Warn("semantic strategy degraded",
			"stage", "embed", "error_class", vector.ErrorClass(err), "error", err)
		return nil
	}

	// Over-fetch so the conversation filter can still fill the page.
	hits, err := s.vectors.Search(ctx, queryVec, req.Limit*s.opts.SemanticOverfetch, req.MinScore)
	if err != nil {
		s.logger.Warn("semantic strategy degraded",
			"stage", "vector_search", "error_class", vector.ErrorClass(err), "error", err)
		return nil
	}

	var results []*types.SearchResult
	for _, hit := range hits {
		if req.Filters.ConversationID != "" && hit.Payload.ConversationID != req.Filters.ConversationID {
			continue
		}
		results = append(results, &types.SearchResult{
			ItemID:   hit.ID,
			ItemType: types.ItemTypeMessage,
			Content:  hit.Payload.Content,
			Score:    hit.Score,
			Source:   types.SourceSemantic,
			Metadata: map[string]any{
				"conversation_id": hit.Payload.ConversationID,
				"role":            hit.Payload.Role,
				"timestamp":       hit.Payload.Timestamp,
			},
		})
		if len(results) == req.Limit {
			break
		}
	}
	return results
}

// keywordSearch scans message content and entity names/descriptions for the
// query substring. Message scores reflect term frequency; entity scores
// distinguish name matches (0.9) from description-only matches (0.6).
func (s *HybridSearcher) keywordSearch(ctx context.Context, req types.SearchRequest) ([]*types.SearchResult, error) {
	ctx, cancel := s.strategyContext(ctx)
	defer cancel()

	messages, err := s.store.FindMessagesByText(ctx, req.Query, req.Filters.ConversationID, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("keyword message scan failed: %w", err)
	}

	var results []*types.SearchResult
	for _, m := range messages {
		results = append(results, &types.SearchResult{
			ItemID:   strconv.FormatInt(m.ID, 10),
			ItemType: types.ItemTypeMessage,
			Content:  m.Content,
			Score:    keywordScore(m.Content, req.Query),
			Source:   types.SourceKeyword,
			Metadata: map[string]any{
				"conversation_id": m.ConversationID,
				"role":            m.Role,
				"timestamp":       m.Timestamp,
			},
		})
	}

	entities, err := s.store.FindEntitiesByText(ctx, req.Query, req.Filters.EntityType, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("keyword entity scan failed: %w", err)
	}
	for _, e := range entities {
		score := 0.6
		if strings.Contains(strings.ToLower(e.Name), strings.ToLower(req.Query)) {
			score = 0.9
		}
		results = append(results, &types.SearchResult{
			ItemID:   e.ID,
			ItemType: types.ItemTypeEntity,
			Content:  entityContent(e.Name, e.Description),
			Score:    score,
			Source:   types.SourceKeyword,
			Metadata: map[string]any{
				"entity_type": string(e.Type),
				"name":        e.Name,
			},
		})
	}
	return results, nil
}

// keywordScore is term frequency scaled into (0, 1]: occurrences over content
// length in characters, times 10, capped at 1.
func keywordScore(content, query string) float64 {
	if len(content) == 0 {
		return 0
	}
	count := strings.Count(strings.ToLower(content), strings.ToLower(query))
	score := float64(count) / float64(len(content)) * 10
	if score > 1 {
		score = 1
	}
	return score
}

func entityContent(name, description string) string {
	if description == "" {
		return name
	}
	return name + ": " + description
}

// graphDistanceDecay converts hop distance to a score: 1/(1+0.3*d).
func graphDistanceDecay(distance int) float64 {
	return 1 / (1 + 0.3*float64(distance))
}

// graphSearch seeds from entities whose names match the query, then expands
// each seed through the knowledge graph, scoring by hop distance. An empty
// snapshot triggers a build first; store failures are fatal here, unlike
// vector failures in the semantic strategy.
func (s *HybridSearcher) graphSearch(ctx context.Context, req types.SearchRequest) ([]*types.SearchResult, error) {
	ctx, cancel := s.strategyContext(ctx)
	defer cancel()

	if s.graph.Stats().Nodes == 0 {
		if _, err := s.graph.Build(ctx, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("graph build failed: %w", err)
		}
	}

	seeds, err := s.store.FindEntitiesByText(ctx, req.Query, req.Filters.EntityType, s.opts.GraphSeedLimit)
	if err != nil {
		return nil, fmt.Errorf("graph seed lookup failed: %w", err)
	}

	best := map[string]*types.SearchResult{}
	record := func(id, name, description string, et types.EntityType, distance int, seedID string) {
		score := graphDistanceDecay(distance)
		key := types.ItemTypeEntity + ":" + id
		if existing, ok := best[key]; ok && existing.Score >= score {
			return
		}
		best[key] = &types.SearchResult{
			ItemID:   id,
			ItemType: types.ItemTypeEntity,
			Content:  entityContent(name, description),
			Score:    score,
			Source:   types.SourceGraph,
			Metadata: map[string]any{
				"entity_type": string(et),
				"name":        name,
				"distance":    distance,
				"seed":        seedID,
			},
		}
	}

	for _, seed := range seeds {
		if !s.graph.Contains(seed.ID) {
			continue
		}

		related := s.graph.FindRelatedEntities(seed.ID, s.opts.GraphMaxDistance, req.Filters.EntityType)
		if len(related) > req.Limit {
			related = related[:req.Limit]
		}
		for _, n := range related {
			record(n.Entity.ID, n.Entity.Name, n.Entity.Description, n.Entity.Type, n.Distance, seed.ID)
		}
	}

	results := make([]*types.SearchResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	return results, nil
}
