package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/contexto-ai/contexto/pkg/types"
)

// MaxContentLength bounds a single message body.
const MaxContentLength = 100_000

// ErrContentTooLong rejects oversized message bodies.
var ErrContentTooLong = errors.New("content exceeds maximum length")

// validRoles are the accepted message roles.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}

// Message is one conversation turn in a save request.
type Message struct {
	Role      string     `json:"role" binding:"required"`
	Content   string     `json:"content" binding:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Tokens    int        `json:"tokens,omitempty"`
}

// Validate checks role and content.
func (m *Message) Validate() error {
	if !validRoles[strings.ToLower(m.Role)] {
		return errors.New("invalid role: must be user, assistant, or system")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(m.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// SaveConversationRequest is the body of POST /conversations.
type SaveConversationRequest struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	ProjectPath    string         `json:"project_path,omitempty"`
	Mode           string         `json:"mode,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Messages       []Message      `json:"messages" binding:"required"`
}

// Validate checks every message.
func (r *SaveConversationRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query          string  `json:"query" binding:"required"`
	Mode           string  `json:"mode,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	EntityType     string  `json:"entity_type,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	MinScore       float64 `json:"min_score,omitempty"`
}

// ToTypes converts the wire request into the engine request.
func (r *SearchRequest) ToTypes() types.SearchRequest {
	return types.SearchRequest{
		Query: r.Query,
		Mode:  types.SearchMode(r.Mode),
		Filters: types.SearchFilters{
			ConversationID: r.ConversationID,
			EntityType:     types.EntityType(r.EntityType),
		},
		Limit:    r.Limit,
		MinScore: r.MinScore,
	}
}

// ExtractRequest is the body of POST /entities/extract.
type ExtractRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      *int64 `json:"message_id,omitempty"`
	Text           string `json:"text" binding:"required"`
}

// RelationshipRequest is the body of POST /relationships.
type RelationshipRequest struct {
	SourceID   string         `json:"source_entity_id" binding:"required"`
	TargetID   string         `json:"target_entity_id" binding:"required"`
	Type       string         `json:"relationship_type" binding:"required"`
	Confidence float64        `json:"confidence,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// TimeRangeRequest is the body of POST /search/time-range.
type TimeRangeRequest struct {
	Start       time.Time `json:"start" binding:"required"`
	End         time.Time `json:"end" binding:"required"`
	EntityTypes []string  `json:"entity_types,omitempty"`
	Limit       int       `json:"limit,omitempty"`
}

// GraphBuildRequest is the optional body of POST /graph/build.
type GraphBuildRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}
