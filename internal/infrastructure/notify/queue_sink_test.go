package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

type queueFake struct {
	published []domain.NotificationCommand
	err       error
}

func (f *queueFake) PublishNotification(_ context.Context, cmd domain.NotificationCommand) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, cmd)
	return nil
}

func (f *queueFake) SubscribeNotifications(context.Context, func(context.Context, domain.NotificationCommand) error) error {
	return nil
}

func TestQueueSinkPublishesAndAcknowledges(t *testing.T) {
	queue := &queueFake{}
	sink := NewQueueSink(queue)

	receipt, err := sink.SendInvoice(context.Background(), domain.InvoiceCommand(domain.Invoice{Price: 800}))
	if err != nil {
		t.Fatalf("send invoice: %v", err)
	}
	if receipt.Status != domain.StatusQueued || receipt.TotalPrice != 800 || receipt.Kind != domain.NotificationInvoice {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	receipt, err = sink.HandOver(context.Background(), domain.HandoverCommand(domain.Handover{RequestedPart: "фара"}))
	if err != nil {
		t.Fatalf("hand over: %v", err)
	}
	if receipt.Status != domain.StatusQueued || receipt.Kind != domain.NotificationHandover {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if len(queue.published) != 2 {
		t.Fatalf("expected 2 published commands, got %d", len(queue.published))
	}
}

func TestQueueSinkPropagatesPublishError(t *testing.T) {
	sink := NewQueueSink(&queueFake{err: domain.ErrTemporary})
	if _, err := sink.HandOver(context.Background(), domain.HandoverCommand(domain.Handover{})); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
