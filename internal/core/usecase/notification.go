package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
)

// NotificationUseCase processes queued notification commands in the worker:
// it delivers them through the sink, records them and archives issued invoices.
type NotificationUseCase struct {
	sink    ports.NotificationSink
	store   ports.NotificationStore
	archive ports.ObjectStorage
}

func NewNotificationUseCase(
	sink ports.NotificationSink,
	store ports.NotificationStore,
	archive ports.ObjectStorage,
) *NotificationUseCase {
	return &NotificationUseCase{
		sink:    sink,
		store:   store,
		archive: archive,
	}
}

func (uc *NotificationUseCase) Process(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	if strings.TrimSpace(cmd.ID) == "" {
		return domain.NotificationReceipt{}, domain.WrapError(domain.ErrInvalidInput, "process notification", errors.New("command id is required"))
	}

	switch cmd.Kind {
	case domain.NotificationInvoice:
		return uc.processInvoice(ctx, cmd)
	case domain.NotificationHandover:
		return uc.processHandover(ctx, cmd)
	default:
		return domain.NotificationReceipt{}, domain.WrapError(
			domain.ErrInvalidInput,
			"process notification",
			fmt.Errorf("unsupported kind %q", cmd.Kind),
		)
	}
}

func (uc *NotificationUseCase) processInvoice(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	if cmd.Invoice == nil {
		return domain.NotificationReceipt{}, domain.WrapError(domain.ErrInvalidInput, "process invoice", errors.New("invoice payload is missing"))
	}

	receipt, err := uc.sink.SendInvoice(ctx, cmd)
	if err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("send invoice: %w", err)
	}

	if receipt.Status == domain.StatusInvoiceSent && uc.archive != nil {
		if err := uc.archiveInvoice(ctx, cmd, receipt); err != nil {
			return domain.NotificationReceipt{}, err
		}
	}

	if err := uc.store.SaveInvoice(ctx, cmd, receipt); err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("save invoice: %w", err)
	}
	return receipt, nil
}

func (uc *NotificationUseCase) processHandover(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	if cmd.Handover == nil {
		return domain.NotificationReceipt{}, domain.WrapError(domain.ErrInvalidInput, "process handover", errors.New("handover payload is missing"))
	}

	receipt, err := uc.sink.HandOver(ctx, cmd)
	if err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("hand over lead: %w", err)
	}
	if err := uc.store.SaveHandover(ctx, cmd, receipt); err != nil {
		return domain.NotificationReceipt{}, fmt.Errorf("save handover: %w", err)
	}
	return receipt, nil
}

type invoiceDocument struct {
	ID             string                     `json:"id"`
	ConversationID string                     `json:"conversation_id"`
	Invoice        domain.Invoice             `json:"invoice"`
	Receipt        domain.NotificationReceipt `json:"receipt"`
	IssuedAt       string                     `json:"issued_at"`
}

func (uc *NotificationUseCase) archiveInvoice(ctx context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error {
	doc := invoiceDocument{
		ID:             cmd.ID,
		ConversationID: cmd.ConversationID,
		Invoice:        *cmd.Invoice,
		Receipt:        receipt,
		IssuedAt:       cmd.CreatedAt.UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal invoice document: %w", err)
	}
	if err := uc.archive.Save(ctx, InvoiceArchiveKey(cmd.ID), bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("archive invoice: %w", err)
	}
	return nil
}

// InvoiceArchiveKey is the object storage key of an issued invoice.
func InvoiceArchiveKey(notificationID string) string {
	return path.Join("invoices", notificationID+".json")
}
