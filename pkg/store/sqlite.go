package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contexto-ai/contexto/pkg/types"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMP NOT NULL,
	project_path TEXT,
	mode         TEXT,
	meta_data    TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	timestamp       TIMESTAMP NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	tokens          INTEGER,
	embedding_id    TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);

CREATE TABLE IF NOT EXISTS entities (
	row_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL,
	name            TEXT NOT NULL,
	entity_type     TEXT NOT NULL,
	description     TEXT,
	confidence      REAL NOT NULL DEFAULT 1.0,
	meta_data       TEXT NOT NULL DEFAULT '{}',
	event_time      TIMESTAMP NOT NULL,
	ingestion_time  TIMESTAMP NOT NULL,
	valid_from      TIMESTAMP NOT NULL,
	valid_until     TIMESTAMP,
	conversation_id TEXT,
	message_id      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_entities_id ON entities(id);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_validity ON entities(valid_from, valid_until);

CREATE TABLE IF NOT EXISTS relationships (
	row_id           INTEGER PRIMARY KEY AUTOINCREMENT,
	id               TEXT NOT NULL,
	source_entity_id TEXT NOT NULL,
	target_entity_id TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	confidence       REAL NOT NULL DEFAULT 1.0,
	properties       TEXT NOT NULL DEFAULT '{}',
	event_time       TIMESTAMP NOT NULL,
	ingestion_time   TIMESTAMP NOT NULL,
	valid_from       TIMESTAMP NOT NULL,
	valid_until      TIMESTAMP,
	conversation_id  TEXT,
	message_id       INTEGER
);
CREATE INDEX IF NOT EXISTS idx_relationships_id ON relationships(id);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_validity ON relationships(valid_from, valid_until);

CREATE TABLE IF NOT EXISTS entity_mentions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id       TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	message_id      INTEGER NOT NULL,
	mention_text    TEXT NOT NULL,
	context_snippet TEXT,
	position        INTEGER,
	timestamp       TIMESTAMP NOT NULL,
	confidence      REAL NOT NULL DEFAULT 1.0
);
CREATE INDEX IF NOT EXISTS idx_mentions_entity ON entity_mentions(entity_id);
`

// SQLiteStore implements TemporalStore on an embedded SQLite database.
// Entity and relationship versions are append-only rows sharing a logical id.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and if needed bootstraps) a SQLite-backed temporal store at
// the given path. Pass ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	// SQLite allows a single writer; a single pooled connection also keeps
	// in-memory databases coherent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const entityColumns = `id, name, entity_type, description, confidence, meta_data,
	event_time, ingestion_time, valid_from, valid_until, conversation_id, message_id`

func (s *SQLiteStore) GetEntities(ctx context.Context, validAt time.Time, entityType types.EntityType) ([]*types.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE valid_from <= ? AND (valid_until IS NULL OR valid_until > ?)`
	args := []any{validAt, validAt}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(entityType))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities
		WHERE id = ? ORDER BY valid_from DESC, row_id DESC LIMIT 1`, id)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}
	return e, nil
}

func (s *SQLiteStore) GetEntityHistory(ctx context.Context, id string) ([]*types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities
		WHERE id = ? ORDER BY valid_from ASC, row_id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity history: %w", err)
	}
	defer rows.Close()

	versions, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, types.ErrEntityNotFound
	}
	return versions, nil
}

func (s *SQLiteStore) FindEntitiesByText(ctx context.Context, substring string, entityType types.EntityType, limit int) ([]*types.Entity, error) {
	pattern := "%" + substring + "%"
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE (lower(name) LIKE lower(?) OR lower(coalesce(description, '')) LIKE lower(?))`
	args := []any{pattern, pattern}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(entityType))
	}
	query += ` ORDER BY confidence DESC, row_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities by text: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (s *SQLiteStore) GetEntitiesInRange(ctx context.Context, start, end time.Time, entityTypes []types.EntityType) ([]*types.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE event_time >= ? AND event_time <= ?`
	args := []any{start, end}
	if len(entityTypes) > 0 {
		query += ` AND entity_type IN (?` + repeat(",?", len(entityTypes)-1) + `)`
		for _, et := range entityTypes {
			args = append(args, string(et))
		}
	}
	query += ` ORDER BY event_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities in range: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (s *SQLiteStore) UpsertEntities(ctx context.Context, entities []*types.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer stmt.Close()

	supersede, err := tx.PrepareContext(ctx, `UPDATE entities SET valid_until = ?
		WHERE id = ? AND valid_until IS NULL AND valid_from < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity supersede: %w", err)
	}
	defer supersede.Close()

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid entity %q: %w", e.Name, err)
		}
		meta, err := marshalMap(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode entity metadata: %w", err)
		}
		// A new version closes any earlier open version of the same entity;
		// both cannot be valid at once.
		if _, err := supersede.ExecContext(ctx, e.ValidFrom, e.ID, e.ValidFrom); err != nil {
			return fmt.Errorf("failed to supersede entity %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Name, string(e.Type), e.Description, e.Confidence, meta,
			e.EventTime, e.IngestionTime, e.ValidFrom, nullTime(e.ValidUntil),
			nullString(e.ConversationID), nullInt(e.MessageID),
		); err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) InvalidateEntity(ctx context.Context, id string, asOf time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET valid_until = ? WHERE id = ? AND valid_until IS NULL`, asOf, id)
	if err != nil {
		return fmt.Errorf("failed to invalidate entity %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrEntityNotFound
	}
	return nil
}

const relationshipColumns = `id, source_entity_id, target_entity_id, relationship_type,
	confidence, properties, event_time, ingestion_time, valid_from, valid_until,
	conversation_id, message_id`

func (s *SQLiteStore) GetRelationships(ctx context.Context, validAt time.Time) ([]*types.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM relationships
		WHERE valid_from <= ? AND (valid_until IS NULL OR valid_until > ?)`, validAt, validAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var rels []*types.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (s *SQLiteStore) InsertRelationship(ctx context.Context, rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	props, err := marshalMap(rel.Properties)
	if err != nil {
		return fmt.Errorf("failed to encode relationship properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, rel.Confidence, props,
		rel.EventTime, rel.IngestionTime, rel.ValidFrom, nullTime(rel.ValidUntil),
		nullString(rel.ConversationID), nullInt(rel.MessageID))
	if err != nil {
		return fmt.Errorf("failed to insert relationship %s: %w", rel.ID, err)
	}
	return nil
}

func (s *SQLiteStore) InsertMentions(ctx context.Context, mentions []*types.EntityMention) error {
	if len(mentions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entity_mentions
		(entity_id, conversation_id, message_id, mention_text, context_snippet, position, timestamp, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare mention insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range mentions {
		if _, err := stmt.ExecContext(ctx, m.EntityID, m.ConversationID, m.MessageID,
			m.MentionText, m.ContextSnippet, m.Position, m.Timestamp, m.Confidence); err != nil {
			return fmt.Errorf("failed to insert mention: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetMentions(ctx context.Context, entityID string, limit int) ([]*types.EntityMention, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, entity_id, conversation_id, message_id,
		coalesce(context_snippet, ''), mention_text, position, timestamp, confidence
		FROM entity_mentions WHERE entity_id = ?
		ORDER BY message_id ASC, position ASC LIMIT ?`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []*types.EntityMention
	for rows.Next() {
		m := &types.EntityMention{}
		if err := rows.Scan(&m.ID, &m.EntityID, &m.ConversationID, &m.MessageID,
			&m.ContextSnippet, &m.MentionText, &m.Position, &m.Timestamp, &m.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *types.Conversation, messages []*types.Message) ([]int64, error) {
	if conv.ID == "" {
		return nil, types.ErrEmptyID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	meta, err := marshalMap(conv.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation metadata: %w", err)
	}
	startedAt := conv.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (id, started_at, project_path, mode, meta_data)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		conv.ID, startedAt, nullString(conv.ProjectPath), nullString(conv.Mode), meta); err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO messages (conversation_id, timestamp, role, content, tokens, embedding_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			conv.ID, ts, m.Role, m.Content, m.Tokens, nullString(m.EmbeddingID))
		if err != nil {
			return nil, fmt.Errorf("failed to insert message: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, coalesce(project_path, ''),
		coalesce(mode, ''), meta_data FROM conversations WHERE id = ?`, id)

	conv := &types.Conversation{}
	var meta string
	err := row.Scan(&conv.ID, &conv.StartedAt, &conv.ProjectPath, &conv.Mode, &meta)
	if err == sql.ErrNoRows {
		return nil, types.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	if err := unmarshalMap(meta, &conv.Metadata); err != nil {
		return nil, err
	}
	return conv, nil
}

const messageColumns = `id, conversation_id, timestamp, role, content,
	coalesce(tokens, 0), coalesce(embedding_id, '')`

func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]*types.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) FindMessagesByText(ctx context.Context, substring string, conversationID string, limit int) ([]*types.Message, error) {
	pattern := "%" + substring + "%"
	query := `SELECT ` + messageColumns + ` FROM messages WHERE lower(content) LIKE lower(?)`
	args := []any{pattern}
	if conversationID != "" {
		query += ` AND conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY timestamp ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages by text: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) GetMessagesInRange(ctx context.Context, start, end time.Time, limit int) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC, id ASC LIMIT ?`,
		start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages in range: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT count(*) FROM conversations`, &stats.Conversations},
		{`SELECT count(*) FROM messages`, &stats.Messages},
		{`SELECT count(DISTINCT id) FROM entities`, &stats.Entities},
		{`SELECT count(DISTINCT id) FROM relationships`, &stats.Relationships},
		{`SELECT count(*) FROM entity_mentions`, &stats.Mentions},
		{`SELECT coalesce(sum(tokens), 0) FROM messages`, &stats.TotalTokens},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute store stats: %w", err)
		}
	}
	return stats, nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*types.Entity, error) {
	e := &types.Entity{}
	var (
		desc       sql.NullString
		meta       string
		validUntil sql.NullTime
		convID     sql.NullString
		msgID      sql.NullInt64
		etype      string
	)
	if err := row.Scan(&e.ID, &e.Name, &etype, &desc, &e.Confidence, &meta,
		&e.EventTime, &e.IngestionTime, &e.ValidFrom, &validUntil, &convID, &msgID); err != nil {
		return nil, err
	}
	e.Type = types.EntityType(etype)
	e.Description = desc.String
	if validUntil.Valid {
		t := validUntil.Time
		e.ValidUntil = &t
	}
	e.ConversationID = convID.String
	if msgID.Valid {
		v := msgID.Int64
		e.MessageID = &v
	}
	if err := unmarshalMap(meta, &e.Metadata); err != nil {
		return nil, err
	}
	return e, nil
}

func scanEntities(rows *sql.Rows) ([]*types.Entity, error) {
	var entities []*types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func scanRelationship(row scanner) (*types.Relationship, error) {
	r := &types.Relationship{}
	var (
		props      string
		validUntil sql.NullTime
		convID     sql.NullString
		msgID      sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Type, &r.Confidence, &props,
		&r.EventTime, &r.IngestionTime, &r.ValidFrom, &validUntil, &convID, &msgID); err != nil {
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}
	if validUntil.Valid {
		t := validUntil.Time
		r.ValidUntil = &t
	}
	r.ConversationID = convID.String
	if msgID.Valid {
		v := msgID.Int64
		r.MessageID = &v
	}
	if err := unmarshalMap(props, &r.Properties); err != nil {
		return nil, err
	}
	return r, nil
}

func scanMessages(rows *sql.Rows) ([]*types.Message, error) {
	var messages []*types.Message
	for rows.Next() {
		m := &types.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Timestamp, &m.Role,
			&m.Content, &m.Tokens, &m.EmbeddingID); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func marshalMap(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(s string, dest *map[string]any) error {
	if s == "" || s == "{}" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return fmt.Errorf("failed to decode stored metadata: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
