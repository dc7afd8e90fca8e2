package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// NotificationRepository records processed notifications. Redelivered
// commands update the existing row.
type NotificationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *NotificationRepository) SaveInvoice(ctx context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error {
	return r.save(ctx, cmd, cmd.Invoice, receipt)
}

func (r *NotificationRepository) SaveHandover(ctx context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error {
	return r.save(ctx, cmd, cmd.Handover, receipt)
}

func (r *NotificationRepository) save(ctx context.Context, cmd domain.NotificationCommand, payload any, receipt domain.NotificationReceipt) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	receiptJSON, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal notification receipt: %w", err)
	}

	createdAt := cmd.CreatedAt
	processedAt := r.now()
	if createdAt.IsZero() {
		createdAt = processedAt
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO notifications (id, conversation_id, kind, status, payload, receipt, created_at, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status, receipt = EXCLUDED.receipt, processed_at = EXCLUDED.processed_at
`, cmd.ID, cmd.ConversationID, string(cmd.Kind), receipt.Status, payloadJSON, receiptJSON, createdAt, processedAt)
	if err != nil {
		return fmt.Errorf("save %s notification: %w", cmd.Kind, err)
	}
	return nil
}
