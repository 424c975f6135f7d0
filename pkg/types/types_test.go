package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityValidate(t *testing.T) {
	valid := Entity{
		ID:        "e1",
		Name:      "Alice",
		Type:      EntityTypePerson,
		ValidFrom: time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(*Entity)
		wantErr error
	}{
		{"valid", func(e *Entity) {}, nil},
		{"missing id", func(e *Entity) { e.ID = "" }, ErrEmptyID},
		{"missing name", func(e *Entity) { e.Name = "" }, ErrEmptyName},
		{"missing type", func(e *Entity) { e.Type = "" }, ErrEmptyEntityType},
		{"missing valid_from", func(e *Entity) { e.ValidFrom = time.Time{} }, ErrMissingValidFrom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEntityValidAt(t *testing.T) {
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	open := Entity{ID: "e1", Name: "x", Type: EntityTypeConcept, ValidFrom: from}
	closed := open
	closed.ValidUntil = &until

	// Open interval: valid for all instants >= ValidFrom.
	assert.False(t, open.ValidAt(from.Add(-time.Second)))
	assert.True(t, open.ValidAt(from))
	assert.True(t, open.ValidAt(from.AddDate(10, 0, 0)))

	// Closed interval: valid_from <= t < valid_until.
	assert.True(t, closed.ValidAt(from))
	assert.True(t, closed.ValidAt(until.Add(-time.Second)))
	assert.False(t, closed.ValidAt(until))
	assert.False(t, closed.ValidAt(until.Add(time.Second)))
}

func TestRelationshipValidate(t *testing.T) {
	r := Relationship{
		ID:        "r1",
		SourceID:  "a",
		TargetID:  "b",
		Type:      "works_on",
		ValidFrom: time.Now(),
	}
	require.NoError(t, r.Validate())

	missing := r
	missing.Type = ""
	assert.ErrorIs(t, missing.Validate(), ErrEmptyRelationship)

	noSource := r
	noSource.SourceID = ""
	assert.ErrorIs(t, noSource.Validate(), ErrEmptyID)
}

func TestSearchRequestValidate(t *testing.T) {
	req := SearchRequest{Query: "kubernetes", Mode: SearchModeHybrid, Limit: 10}
	require.NoError(t, req.Validate())

	empty := req
	empty.Query = "   "
	assert.ErrorIs(t, empty.Validate(), ErrEmptyQuery)

	badMode := req
	badMode.Mode = "fuzzy"
	assert.ErrorIs(t, badMode.Validate(), ErrInvalidMode)

	negative := req
	negative.Limit = -1
	assert.ErrorIs(t, negative.Validate(), ErrInvalidLimit)
}

func TestSearchRequestWithDefaults(t *testing.T) {
	req := SearchRequest{Query: "q"}
	out := req.WithDefaults()
	assert.Equal(t, SearchModeHybrid, out.Mode)
	assert.Equal(t, 10, out.Limit)

	// Explicit values are preserved.
	req = SearchRequest{Query: "q", Mode: SearchModeGraph, Limit: 3}
	out = req.WithDefaults()
	assert.Equal(t, SearchModeGraph, out.Mode)
	assert.Equal(t, 3, out.Limit)
}

func TestSearchModeValid(t *testing.T) {
	for _, m := range []SearchMode{SearchModeHybrid, SearchModeSemantic, SearchModeKeyword, SearchModeGraph} {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, SearchMode("").Valid())
	assert.False(t, SearchMode("exact").Valid())
}

func TestTimeRangeValidate(t *testing.T) {
	now := time.Now()
	ok := TimeRange{Start: now.Add(-time.Hour), End: now}
	assert.NoError(t, ok.Validate())

	bad := TimeRange{Start: now, End: now.Add(-time.Hour)}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidTimeRange)
}

func TestSearchResultKey(t *testing.T) {
	r := SearchResult{ItemID: "42", ItemType: ItemTypeMessage}
	assert.Equal(t, "message:42", r.Key())
}
