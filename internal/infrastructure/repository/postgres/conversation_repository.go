package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// ConversationRepository stores the latest state of each conversation as
// JSONB and appends every turn to conversation_messages.
type ConversationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *ConversationRepository) GetConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT state, updated_at
FROM conversations
WHERE conversation_id = $1
`, conversationID)

	var (
		raw       []byte
		updatedAt time.Time
	)
	if err := row.Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("id=%s", conversationID))
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	state.ConversationID = conversationID
	state.UpdatedAt = updatedAt
	return &state, nil
}

func (r *ConversationRepository) SaveConversation(ctx context.Context, state domain.ConversationState, newTurns []domain.Turn) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = r.now()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conversation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO conversations (conversation_id, stage, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (conversation_id) DO UPDATE
SET stage = EXCLUDED.stage, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
`, state.ConversationID, string(state.Stage), raw, state.UpdatedAt); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	for i, turn := range newTurns {
		// Offsets keep turns of one save ordered by created_at.
		createdAt := state.UpdatedAt.Add(time.Duration(i) * time.Microsecond)
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_messages (id, conversation_id, role, content, stage, situation, rule, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, uuid.NewString(), state.ConversationID, turn.Role, turn.Text, string(turn.Stage),
			nullableString(turn.Situation), nullableString(turn.Rule), createdAt); err != nil {
			return fmt.Errorf("append conversation message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation tx: %w", err)
	}
	return nil
}

// ListMessages returns the persisted turns of a conversation in order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content, stage, COALESCE(situation, ''), COALESCE(rule, '')
FROM conversation_messages
WHERE conversation_id = $1
ORDER BY created_at ASC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Turn, 0, limit)
	for rows.Next() {
		var (
			turn  domain.Turn
			stage string
		)
		if err := rows.Scan(&turn.Role, &turn.Text, &stage, &turn.Situation, &turn.Rule); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		turn.Stage = domain.Stage(stage)
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation messages: %w", err)
	}
	return out, nil
}
