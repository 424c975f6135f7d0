package types

import "strings"

// SearchMode selects which retrieval strategies run for a query.
type SearchMode string

const (
	// SearchModeHybrid runs all strategies and fuses their rankings.
	SearchModeHybrid SearchMode = "hybrid"
	// SearchModeSemantic runs vector-similarity search only.
	SearchModeSemantic SearchMode = "semantic"
	// SearchModeKeyword runs substring search over messages and entities only.
	SearchModeKeyword SearchMode = "keyword"
	// SearchModeGraph runs seed-and-expand graph search only.
	SearchModeGraph SearchMode = "graph"
)

// Valid reports whether the mode is one of the recognized values.
func (m SearchMode) Valid() bool {
	switch m {
	case SearchModeHybrid, SearchModeSemantic, SearchModeKeyword, SearchModeGraph:
		return true
	}
	return false
}

// Result sources, recorded on every candidate so fusion can rank per strategy.
const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
	SourceGraph    = "graph"
)

// Result item types.
const (
	ItemTypeMessage = "message"
	ItemTypeEntity  = "entity"
)

// SearchFilters constrains which candidates a strategy may return.
type SearchFilters struct {
	ConversationID string     `json:"conversation_id,omitempty"`
	EntityType     EntityType `json:"entity_type,omitempty"`
}

// SearchRequest describes a single search invocation. The orchestrator is
// stateless; every call is fully described by its request.
type SearchRequest struct {
	Query    string        `json:"query"`
	Mode     SearchMode    `json:"mode"`
	Filters  SearchFilters `json:"filters"`
	Limit    int           `json:"limit"`
	MinScore float64       `json:"min_score"`
}

// Validate rejects malformed requests before any strategy runs.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if !r.Mode.Valid() {
		return ErrInvalidMode
	}
	if r.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// WithDefaults returns a copy of the request with defaults applied.
func (r *SearchRequest) WithDefaults() SearchRequest {
	out := *r
	if out.Mode == "" {
		out.Mode = SearchModeHybrid
	}
	if out.Limit == 0 {
		out.Limit = 10
	}
	return out
}

// SearchResult is a single ranked candidate. Score is the strategy's native
// score in single-strategy modes and the fused RRF score in hybrid mode.
type SearchResult struct {
	ItemID   string         `json:"item_id"`
	ItemType string         `json:"item_type"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Key identifies a candidate across strategies for deduplication.
func (r *SearchResult) Key() string {
	return r.ItemType + ":" + r.ItemID
}
