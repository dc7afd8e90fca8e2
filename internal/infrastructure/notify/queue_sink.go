package notify

import (
	"context"
	"fmt"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
)

// QueueSink defers delivery to the worker: commands are published to the
// notification queue and acknowledged with a queued receipt.
type QueueSink struct {
	queue ports.NotificationQueue
}

func NewQueueSink(queue ports.NotificationQueue) *QueueSink {
	return &QueueSink{queue: queue}
}

func (s *QueueSink) SendInvoice(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	return s.publish(ctx, cmd)
}

func (s *QueueSink) HandOver(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	return s.publish(ctx, cmd)
}

func (s *QueueSink) publish(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	if err := s.queue.PublishNotification(ctx, cmd); err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("queue %s notification: %w", cmd.Kind, err)
	}
	receipt := domain.NotificationReceipt{Kind: cmd.Kind, Status: domain.StatusQueued}
	if cmd.Kind == domain.NotificationInvoice && cmd.Invoice != nil {
		receipt.TotalPrice = cmd.Invoice.Price
	}
	return receipt, nil
}
