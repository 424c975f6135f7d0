package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexto-ai/contexto/pkg/embedder"
	"github.com/contexto-ai/contexto/pkg/graph"
	"github.com/contexto-ai/contexto/pkg/types"
	"github.com/contexto-ai/contexto/pkg/vector"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// mockStore serves fixed rows with substring matching, mirroring the SQLite
// scans.
type mockStore struct {
	messages []*types.Message
	entities []*types.Entity
	storeErr error
}

func (m *mockStore) FindMessagesByText(_ context.Context, substring, conversationID string, limit int) ([]*types.Message, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	var out []*types.Message
	for _, msg := range m.messages {
		if !strings.Contains(strings.ToLower(msg.Content), strings.ToLower(substring)) {
			continue
		}
		if conversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) FindEntitiesByText(_ context.Context, substring string, entityType types.EntityType, limit int) ([]*types.Entity, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	var out []*types.Entity
	for _, e := range m.entities {
		text := strings.ToLower(e.Name + " " + e.Description)
		if !strings.Contains(text, strings.ToLower(substring)) {
			continue
		}
		if entityType != "" && e.Type != entityType {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) GetMessages(_ context.Context, conversationID string, limit int) ([]*types.Message, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	var out []*types.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) GetMessagesInRange(_ context.Context, start, end time.Time, limit int) ([]*types.Message, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	var out []*types.Message
	for _, msg := range m.messages {
		if !msg.Timestamp.Before(start) && !msg.Timestamp.After(end) && len(out) < limit {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) GetEntitiesInRange(_ context.Context, start, end time.Time, _ []types.EntityType) ([]*types.Entity, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	var out []*types.Entity
	for _, e := range m.entities {
		if !e.EventTime.Before(start) && !e.EventTime.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// graphSource adapts the mock store's entities into a graph.Source.
type graphSource struct {
	entities      []*types.Entity
	relationships []*types.Relationship
}

func (g *graphSource) GetEntities(_ context.Context, validAt time.Time, _ types.EntityType) ([]*types.Entity, error) {
	var out []*types.Entity
	for _, e := range g.entities {
		if e.ValidAt(validAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *graphSource) GetRelationships(_ context.Context, validAt time.Time) ([]*types.Relationship, error) {
	var out []*types.Relationship
	for _, r := range g.relationships {
		if r.ValidAt(validAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

// fixedEmbedder returns one constant vector, or an error.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f *fixedEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fixedEmbedder) Dimensions() int { return len(f.vec) }
func (f *fixedEmbedder) Close() error    { return nil }

// fixedVectors returns canned hits, or an error.
type fixedVectors struct {
	hits []*vector.ScoredPoint
	err  error
}

func (f *fixedVectors) Upsert(context.Context, []*vector.Point) error { return nil }
func (f *fixedVectors) Search(context.Context, []float32, int, float64) ([]*vector.ScoredPoint, error) {
	return f.hits, f.err
}
func (f *fixedVectors) Close() error { return nil }

func testEntity(id, name, description string, et types.EntityType, conf float64) *types.Entity {
	return &types.Entity{
		ID: id, Name: name, Description: description, Type: et, Confidence: conf,
		EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch,
	}
}

func newTestSearcher(t *testing.T, store *mockStore, src *graphSource, vecs vector.Client, emb embedder.Client) *HybridSearcher {
	t.Helper()
	kg := graph.NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))
	if len(src.entities) > 0 {
		_, err := kg.Build(context.Background(), epoch.AddDate(0, 1, 0))
		require.NoError(t, err)
	}
	return NewHybridSearcher(store, kg, vecs, emb, slog.New(slog.DiscardHandler), Options{})
}

func TestSearchValidation(t *testing.T) {
	s := newTestSearcher(t, &mockStore{}, &graphSource{}, nil, nil)

	_, err := s.Search(context.Background(), types.SearchRequest{Query: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)

	_, err = s.Search(context.Background(), types.SearchRequest{Query: "x", Mode: "fuzzy"})
	assert.ErrorIs(t, err, types.ErrInvalidMode)

	_, err = s.Search(context.Background(), types.SearchRequest{Query: "x", Limit: -2})
	assert.ErrorIs(t, err, types.ErrInvalidLimit)
}

func TestKeywordSearchScores(t *testing.T) {
	store := &mockStore{
		messages: []*types.Message{
			{ID: 1, ConversationID: "c1", Content: "redis redis redis cache", Timestamp: epoch},
			{ID: 2, ConversationID: "c2", Content: "we could try redis for the session store maybe later this week", Timestamp: epoch},
		},
		entities: []*types.Entity{
			testEntity("e1", "redis", "", types.EntityTypeTool, 0.9),
			testEntity("e2", "session cache", "backed by redis", types.EntityTypeConcept, 0.8),
		},
	}
	s := newTestSearcher(t, store, &graphSource{}, nil, nil)

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeKeyword})
	require.NoError(t, err)
	require.Len(t, results, 4)

	byID := map[string]*types.SearchResult{}
	for _, r := range results {
		byID[r.Key()] = r
	}

	// Message 1: 3 occurrences over 23 characters, capped at 1.
	assert.InDelta(t, 1.0, byID["message:1"].Score, 1e-9)
	// Message 2: 1 occurrence over 62 characters.
	assert.InDelta(t, 10.0/62.0, byID["message:2"].Score, 1e-9)
	// Name match vs description-only match.
	assert.InDelta(t, 0.9, byID["entity:e1"].Score, 1e-9)
	assert.InDelta(t, 0.6, byID["entity:e2"].Score, 1e-9)

	// Results are sorted by score descending.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestKeywordScoreUsesContentLength(t *testing.T) {
	content := "the graph store keeps every entity version in a bitemporal sqlite table"
	assert.InDelta(t, 10.0/float64(len(content)), keywordScore(content, "entity"), 1e-9)

	// Dense matches cap at 1.
	assert.InDelta(t, 1.0, keywordScore("go go go", "go"), 1e-9)

	assert.Zero(t, keywordScore("", "go"))
}

func TestKeywordConversationFilter(t *testing.T) {
	store := &mockStore{
		messages: []*types.Message{
			{ID: 1, ConversationID: "c1", Content: "redis here", Timestamp: epoch},
			{ID: 2, ConversationID: "c2", Content: "redis there", Timestamp: epoch},
		},
	}
	s := newTestSearcher(t, store, &graphSource{}, nil, nil)

	results, err := s.Search(context.Background(), types.SearchRequest{
		Query: "redis", Mode: types.SearchModeKeyword,
		Filters: types.SearchFilters{ConversationID: "c2"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ItemID)
}

func TestSemanticSearchFiltersAndCaps(t *testing.T) {
	vecs := &fixedVectors{hits: []*vector.ScoredPoint{
		{Point: vector.Point{ID: "10", Payload: vector.Payload{Content: "a", ConversationID: "c1"}}, Score: 0.95},
		{Point: vector.Point{ID: "11", Payload: vector.Payload{Content: "b", ConversationID: "c2"}}, Score: 0.9},
		{Point: vector.Point{ID: "12", Payload: vector.Payload{Content: "c", ConversationID: "c1"}}, Score: 0.8},
	}}
	s := newTestSearcher(t, &mockStore{}, &graphSource{}, vecs, &fixedEmbedder{vec: []float32{1, 0}})

	results, err := s.Search(context.Background(), types.SearchRequest{
		Query: "anything", Mode: types.SearchModeSemantic,
		Filters: types.SearchFilters{ConversationID: "c1"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "10", results[0].ItemID)
	assert.Equal(t, "12", results[1].ItemID)
	assert.Equal(t, types.SourceSemantic, results[0].Source)
}

func TestSemanticDegradesToEmpty(t *testing.T) {
	store := &mockStore{messages: []*types.Message{
		{ID: 1, ConversationID: "c1", Content: "redis notes", Timestamp: epoch},
	}}

	// Embedder failure.
	s := newTestSearcher(t, store, &graphSource{}, &fixedVectors{}, &fixedEmbedder{err: errors.New("no api key")})
	results, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeHybrid})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "message:1", results[0].Key())

	// Vector upstream failure.
	s = newTestSearcher(t, store, &graphSource{}, &fixedVectors{err: errors.New("connection refused")}, &fixedEmbedder{vec: []float32{1}})
	results, err = s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeHybrid})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestStoreFailureIsFatal(t *testing.T) {
	store := &mockStore{storeErr: errors.New("disk error")}
	s := newTestSearcher(t, store, &graphSource{}, nil, nil)

	_, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeKeyword})
	require.Error(t, err)

	_, err = s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeHybrid})
	require.Error(t, err)
}

func TestGraphSearchDistanceDecay(t *testing.T) {
	entities := []*types.Entity{
		testEntity("a", "redis", "", types.EntityTypeTool, 0.9),
		testEntity("b", "session cache", "", types.EntityTypeConcept, 0.8),
		testEntity("c", "checkout service", "", types.EntityTypeProject, 0.7),
	}
	src := &graphSource{
		entities: entities,
		relationships: []*types.Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "backs", Confidence: 0.8, EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch},
			{ID: "r2", SourceID: "b", TargetID: "c", Type: "part_of", Confidence: 0.8, EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch},
		},
	}
	store := &mockStore{entities: entities}
	s := newTestSearcher(t, store, src, nil, nil)

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeGraph})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]float64{}
	for _, r := range results {
		byID[r.ItemID] = r.Score
	}
	// The seed itself is never a result; only its expansion is.
	assert.NotContains(t, byID, "a")
	assert.InDelta(t, 1.0/1.3, byID["b"], 1e-9)
	assert.InDelta(t, 1.0/1.6, byID["c"], 1e-9)
}

func TestGraphSearchHonorsEntityTypeFilter(t *testing.T) {
	entities := []*types.Entity{
		testEntity("a", "redis", "", types.EntityTypeTool, 0.9),
		testEntity("b", "memcached", "", types.EntityTypeTool, 0.8),
		testEntity("p", "alice", "", types.EntityTypePerson, 0.9),
	}
	src := &graphSource{
		entities: entities,
		relationships: []*types.Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "alternative_to", Confidence: 0.8, EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch},
			{ID: "r2", SourceID: "a", TargetID: "p", Type: "maintained_by", Confidence: 0.8, EventTime: epoch, IngestionTime: epoch, ValidFrom: epoch},
		},
	}
	store := &mockStore{entities: entities}
	s := newTestSearcher(t, store, src, nil, nil)

	// Unfiltered expansion reaches both neighbors of the seed.
	results, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeGraph})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The type filter applies to expanded entities, not just seeds.
	results, err = s.Search(context.Background(), types.SearchRequest{
		Query: "redis", Mode: types.SearchModeGraph,
		Filters: types.SearchFilters{EntityType: types.EntityTypeTool},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ItemID)
	assert.Equal(t, string(types.EntityTypeTool), results[0].Metadata["entity_type"])
}

func TestGraphSearchBuildsLazily(t *testing.T) {
	entities := []*types.Entity{testEntity("a", "redis", "", types.EntityTypeTool, 0.9)}
	src := &graphSource{entities: entities}
	store := &mockStore{entities: entities}

	kg := graph.NewKnowledgeGraph(src, slog.New(slog.DiscardHandler))
	s := NewHybridSearcher(store, kg, nil, nil, slog.New(slog.DiscardHandler), Options{})

	require.Equal(t, 0, kg.Stats().Nodes)
	results, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeGraph})
	require.NoError(t, err)
	// The isolated seed has nothing to expand into, but the query built a
	// snapshot.
	assert.Empty(t, results)
	assert.Equal(t, 1, kg.Stats().Nodes)
}

func TestFuseRRF(t *testing.T) {
	m1 := &types.SearchResult{ItemID: "m1", ItemType: types.ItemTypeMessage, Score: 0.9, Source: types.SourceSemantic}
	m2a := &types.SearchResult{ItemID: "m2", ItemType: types.ItemTypeMessage, Score: 0.8, Source: types.SourceSemantic}
	m2b := &types.SearchResult{ItemID: "m2", ItemType: types.ItemTypeMessage, Score: 1.0, Source: types.SourceKeyword}
	m3 := &types.SearchResult{ItemID: "m3", ItemType: types.ItemTypeMessage, Score: 0.5, Source: types.SourceKeyword}

	fused := fuseRRF([][]*types.SearchResult{
		{m1, m2a},
		{m2b, m3},
	})
	require.Len(t, fused, 3)

	// m2 ranks first in keyword and second in semantic: 1/61 + 1/62.
	assert.Equal(t, "m2", fused[0].ItemID)
	assert.InDelta(t, 1.0/61+1.0/62, fused[0].Score, 1e-12)
	assert.Equal(t, "semantic+keyword", fused[0].Source)

	// m1 and m3 each appear once at ranks 1 and 2.
	assert.Equal(t, "m1", fused[1].ItemID)
	assert.InDelta(t, 1.0/61, fused[1].Score, 1e-12)
	assert.Equal(t, "m3", fused[2].ItemID)
	assert.InDelta(t, 1.0/62, fused[2].Score, 1e-12)
}

func TestFuseRRFSameTypeDistinctItems(t *testing.T) {
	// A message and an entity sharing an id stay separate.
	msg := &types.SearchResult{ItemID: "7", ItemType: types.ItemTypeMessage, Score: 0.9, Source: types.SourceKeyword}
	ent := &types.SearchResult{ItemID: "7", ItemType: types.ItemTypeEntity, Score: 0.8, Source: types.SourceKeyword}
	fused := fuseRRF([][]*types.SearchResult{{msg, ent}})
	assert.Len(t, fused, 2)
}

func TestMinScoreFilter(t *testing.T) {
	store := &mockStore{
		entities: []*types.Entity{
			testEntity("e1", "redis", "", types.EntityTypeTool, 0.9),
			testEntity("e2", "notes", "mentions redis", types.EntityTypeConcept, 0.8),
		},
	}
	s := newTestSearcher(t, store, &graphSource{}, nil, nil)

	results, err := s.Search(context.Background(), types.SearchRequest{
		Query: "redis", Mode: types.SearchModeKeyword, MinScore: 0.8,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "e1", results[0].ItemID)
}

func TestLimitTruncates(t *testing.T) {
	var messages []*types.Message
	for i := int64(1); i <= 20; i++ {
		messages = append(messages, &types.Message{ID: i, ConversationID: "c1", Content: "redis", Timestamp: epoch})
	}
	s := newTestSearcher(t, &mockStore{messages: messages}, &graphSource{}, nil, nil)

	results, err := s.Search(context.Background(), types.SearchRequest{Query: "redis", Mode: types.SearchModeKeyword, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestSearchByEntity(t *testing.T) {
	e := testEntity("a", "redis", "", types.EntityTypeTool, 0.9)
	e.ConversationID = "c1"
	src := &graphSource{entities: []*types.Entity{e}}
	store := &mockStore{messages: []*types.Message{
		{ID: 1, ConversationID: "c1", Content: "switch to redis", Timestamp: epoch},
	}}
	s := newTestSearcher(t, store, src, nil, nil)

	result, err := s.SearchByEntity(context.Background(), "a", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, "a", result.Context.Entity.ID)
	require.Len(t, result.Messages, 1)

	_, err = s.SearchByEntity(context.Background(), "missing", 2, 10)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestSearchByTimeRange(t *testing.T) {
	long := strings.Repeat("x", 300)
	store := &mockStore{
		messages: []*types.Message{
			{ID: 1, ConversationID: "c1", Content: long, Timestamp: epoch.Add(time.Hour)},
			{ID: 2, ConversationID: "c1", Content: "short", Timestamp: epoch.AddDate(0, 2, 0)},
		},
		entities: []*types.Entity{testEntity("e1", "redis", "", types.EntityTypeTool, 0.9)},
	}
	s := newTestSearcher(t, store, &graphSource{}, nil, nil)

	tr := types.TimeRange{Start: epoch, End: epoch.AddDate(0, 1, 0)}
	results, err := s.SearchByTimeRange(context.Background(), tr, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Long content is previewed with a marker.
	assert.Len(t, results[0].Content, previewLength+3)
	assert.True(t, strings.HasSuffix(results[0].Content, "..."))
	assert.Equal(t, "entity:e1", results[1].Key())

	// Inverted range is rejected before any scan.
	_, err = s.SearchByTimeRange(context.Background(), types.TimeRange{Start: tr.End, End: tr.Start}, nil, 10)
	assert.ErrorIs(t, err, types.ErrInvalidTimeRange)
}

func TestSearchByTimeRangeCapsPerCategory(t *testing.T) {
	store := &mockStore{
		messages: []*types.Message{
			{ID: 1, ConversationID: "c1", Content: "one", Timestamp: epoch},
			{ID: 2, ConversationID: "c1", Content: "two", Timestamp: epoch.Add(time.Hour)},
		},
		entities: []*types.Entity{
			testEntity("e1", "redis", "", types.EntityTypeTool, 0.9),
			testEntity("e2", "postgres", "", types.EntityTypeTool, 0.8),
			testEntity("e3", "docker", "", types.EntityTypeTool, 0.7),
		},
	}
	s := newTestSearcher(t, store, &graphSource{}, nil, nil)

	// Messages filling the page do not crowd out entities; each category is
	// capped at limit on its own.
	tr := types.TimeRange{Start: epoch, End: epoch.AddDate(0, 1, 0)}
	results, err := s.SearchByTimeRange(context.Background(), tr, nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	counts := map[string]int{}
	for _, r := range results {
		counts[r.ItemType]++
	}
	assert.Equal(t, 2, counts[types.ItemTypeMessage])
	assert.Equal(t, 2, counts[types.ItemTypeEntity])
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日", 100) // 300 bytes of 3-byte runes
	out := preview(long)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("日", 66)+"...", out)

	// ASCII content still cuts at the fixed length.
	out = preview(strings.Repeat("x", 300))
	assert.Len(t, out, previewLength+3)

	// Short content passes through untouched.
	assert.Equal(t, "short", preview("short"))
}
