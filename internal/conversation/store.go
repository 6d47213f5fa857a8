package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botdeckhq/botdeck/internal/db"
	"github.com/botdeckhq/botdeck/internal/deployment"
)

// Store is the pgx-backed conversation service.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Service = (*Store)(nil)

// NewStore creates a conversation Store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "conversations")),
	}
}

// Upsert inserts the conversation or, when the derived id already exists,
// flips it back to ACTIVE. Last writer wins; there is no optimistic
// concurrency check on status (concurrent webhook delivery for one human in
// one thread is not expected in practice).
func (s *Store) Upsert(ctx context.Context, conv Conversation) (Conversation, error) {
	id, err := db.ParseUUID(conv.ID)
	if err != nil {
		return Conversation{}, err
	}
	botID, err := db.ParseUUID(conv.BotID)
	if err != nil {
		return Conversation{}, err
	}
	metadata, err := json.Marshal(nonNilMap(conv.Metadata))
	if err != nil {
		return Conversation{}, fmt.Errorf("marshal conversation metadata: %w", err)
	}
	status := conv.Status
	if status == "" {
		status = StatusActive
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, bot_id, external_user_id, source, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = $5,
			external_user_id = EXCLUDED.external_user_id,
			metadata = EXCLUDED.metadata,
			updated_at = now()
		RETURNING id::text, bot_id::text, external_user_id, source, status, metadata, created_at, updated_at`,
		id, botID, conv.ExternalUserID, conv.Source.String(), status, metadata)
	return scanConversation(row)
}

// AppendMessage appends one turn to the conversation history.
func (s *Store) AppendMessage(ctx context.Context, input AppendInput) (Message, error) {
	conversationID, err := db.ParseUUID(input.ConversationID)
	if err != nil {
		return Message{}, err
	}
	var responseMessages any
	if len(input.ResponseMessages) > 0 {
		responseMessages = []byte(input.ResponseMessages)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, content, response_messages)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, conversation_id::text, role, content, response_messages, created_at`,
		conversationID, string(input.Role), input.Content, responseMessages)
	return scanMessage(row)
}

// ListLatest returns up to limit messages for the conversation, newest
// first. History reverses them to oldest-first for the processor.
func (s *Store) ListLatest(ctx context.Context, conversationID string, limit int32) ([]Message, error) {
	id, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, role, content, response_messages, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		conv        Conversation
		source      string
		metadataRaw []byte
		created     time.Time
		updated     time.Time
	)
	if err := row.Scan(&conv.ID, &conv.BotID, &conv.ExternalUserID, &source, &conv.Status, &metadataRaw, &created, &updated); err != nil {
		return Conversation{}, err
	}
	conv.Source = deployment.PlatformType(source)
	conv.CreatedAt = created
	conv.UpdatedAt = updated
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &conv.Metadata); err != nil {
			return Conversation{}, fmt.Errorf("decode conversation metadata: %w", err)
		}
	}
	return conv, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		msg     Message
		role    string
		respRaw []byte
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &respRaw, &msg.CreatedAt); err != nil {
		return Message{}, err
	}
	msg.Role = deployment.Role(role)
	if len(respRaw) > 0 {
		msg.ResponseMessages = json.RawMessage(respRaw)
	}
	return msg, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
