package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyID             = errors.New("id cannot be empty")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrEmptyEntityType     = errors.New("entity_type cannot be empty")
	ErrEmptyQuery          = errors.New("query cannot be empty")
	ErrInvalidMode         = errors.New("invalid search mode")
	ErrInvalidLimit        = errors.New("limit must be positive")
	ErrMissingValidFrom    = errors.New("valid_from is required")
	ErrInvalidTimeRange    = errors.New("start must not be after end")
	ErrEmptyRelationship   = errors.New("relationship_type cannot be empty")
	ErrSameSourceAndTarget = errors.New("source and target must differ")
)

// Lookup errors
var (
	ErrEntityNotFound       = errors.New("entity not found")
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// EntityType classifies an entity extracted from conversation text.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeTool         EntityType = "tool"
	EntityTypeLocation     EntityType = "location"
	EntityTypeTemporal     EntityType = "temporal"
	EntityTypeEvent        EntityType = "event"
	EntityTypeProject      EntityType = "project"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeFile         EntityType = "file"
	EntityTypeFunction     EntityType = "function"
	EntityTypeClass        EntityType = "class"
)

// Entity is a named, typed thing extracted from conversation text.
// Bi-temporal fields track both when the entity was true in the world
// (EventTime, ValidFrom/ValidUntil) and when the system learned about it
// (IngestionTime). Entities are never physically deleted: superseding a
// version sets ValidUntil on the old row and inserts a new one.
type Entity struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        EntityType     `json:"entity_type"`
	Description string         `json:"description,omitempty"`
	Confidence  float64        `json:"confidence"`
	Metadata    map[string]any `json:"meta_data,omitempty"`

	// Bi-temporal fields
	EventTime     time.Time  `json:"event_time"`
	IngestionTime time.Time  `json:"ingestion_time"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`

	// Source tracking
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      *int64 `json:"message_id,omitempty"`
}

// Validate checks that the Entity carries all required fields.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Name == "" {
		return ErrEmptyName
	}
	if e.Type == "" {
		return ErrEmptyEntityType
	}
	if e.ValidFrom.IsZero() {
		return ErrMissingValidFrom
	}
	return nil
}

// ValidAt reports whether the entity version is valid at the given instant:
// ValidFrom <= t and (ValidUntil unset or ValidUntil > t).
func (e *Entity) ValidAt(t time.Time) bool {
	if e.ValidFrom.After(t) {
		return false
	}
	return e.ValidUntil == nil || e.ValidUntil.After(t)
}

// Relationship is a typed, directed, bi-temporal edge between two entities.
// Multiple relationships may exist between the same ordered pair; each is
// identified by its own ID (multigraph semantics).
type Relationship struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_entity_id"`
	TargetID   string         `json:"target_entity_id"`
	Type       string         `json:"relationship_type"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`

	// Bi-temporal fields
	EventTime     time.Time  `json:"event_time"`
	IngestionTime time.Time  `json:"ingestion_time"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`

	// Source tracking
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      *int64 `json:"message_id,omitempty"`
}

// Validate checks that the Relationship carries all required fields.
func (r *Relationship) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.SourceID == "" || r.TargetID == "" {
		return ErrEmptyID
	}
	if r.Type == "" {
		return ErrEmptyRelationship
	}
	if r.ValidFrom.IsZero() {
		return ErrMissingValidFrom
	}
	return nil
}

// ValidAt reports whether the relationship version is valid at the given instant.
func (r *Relationship) ValidAt(t time.Time) bool {
	if r.ValidFrom.After(t) {
		return false
	}
	return r.ValidUntil == nil || r.ValidUntil.After(t)
}

// EntityMention is a positional occurrence of an entity's surface text
// inside a specific message. Mentions are read-only once created.
type EntityMention struct {
	ID             int64     `json:"id"`
	EntityID       string    `json:"entity_id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      int64     `json:"message_id"`
	MentionText    string    `json:"mention_text"`
	ContextSnippet string    `json:"context_snippet,omitempty"`
	Position       int       `json:"position"`
	Timestamp      time.Time `json:"timestamp"`
	Confidence     float64   `json:"confidence"`
}

// Conversation groups messages and carries opaque caller metadata.
type Conversation struct {
	ID          string         `json:"id"`
	StartedAt   time.Time      `json:"started_at"`
	ProjectPath string         `json:"project_path,omitempty"`
	Mode        string         `json:"mode,omitempty"`
	Metadata    map[string]any `json:"meta_data,omitempty"`
}

// Message is a single conversation turn.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Tokens         int       `json:"tokens,omitempty"`
	EmbeddingID    string    `json:"embedding_id,omitempty"`
}

// TimeRange bounds a temporal query. Both ends are inclusive.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the range is well ordered.
func (tr *TimeRange) Validate() error {
	if tr.Start.After(tr.End) {
		return ErrInvalidTimeRange
	}
	return nil
}
