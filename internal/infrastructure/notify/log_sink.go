package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

const (
	unknownClient   = "неизвестно"
	unknownContact  = "не указан"
	unknownQuestion = "Не указан вопрос"
	unknownPart     = "не указана"
	unknownModel    = "не указаны"
)

var requiredInvoiceFields = []string{"client_name", "contact", "part_article", "part_name", "price"}

// LogSink delivers notifications by writing them to the structured log. It is
// the terminal delivery channel of the worker and the in-process default.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) SendInvoice(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	if cmd.Invoice == nil {
		return domain.NotificationReceipt{}, domain.WrapError(domain.ErrInvalidInput, "send invoice", errors.New("invoice payload is missing"))
	}
	inv := cmd.Invoice

	if missing := missingInvoiceFields(*inv); len(missing) > 0 {
		return domain.NotificationReceipt{
			Kind:    domain.NotificationInvoice,
			Status:  domain.StatusError,
			Message: fmt.Sprintf("missing required fields: %s (required: %s)", strings.Join(missing, ", "), strings.Join(requiredInvoiceFields, ", ")),
		}, nil
	}

	s.logger.InfoContext(ctx, "invoice_sent",
		"notification_id", cmd.ID,
		"conversation_id", cmd.ConversationID,
		"client_name", inv.ClientName,
		"contact", inv.Contact,
		"part_name", inv.PartName,
		"part_article", inv.PartArticle,
		"model_year", orDefault(inv.ModelYear, "не указано"),
		"total_price", inv.Price,
	)
	return domain.NotificationReceipt{
		Kind:   domain.NotificationInvoice,
		Status: domain.StatusInvoiceSent,
		Items: []domain.InvoiceItem{{
			Name:     inv.PartName,
			Article:  inv.PartArticle,
			Price:    inv.Price,
			Quantity: 1,
		}},
		TotalPrice: inv.Price,
	}, nil
}

func (s *LogSink) HandOver(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error) {
	if cmd.Handover == nil {
		return domain.NotificationReceipt{}, domain.WrapError(domain.ErrInvalidInput, "hand over", errors.New("handover payload is missing"))
	}
	lead := cmd.Handover

	leadContext := HandoverContext(*lead)
	s.logger.InfoContext(ctx, "lead_handed_over",
		"notification_id", cmd.ID,
		"conversation_id", cmd.ConversationID,
		"client_name", orDefault(lead.ClientName, unknownClient),
		"contact", orDefault(lead.Contact, unknownContact),
		"question", orDefault(lead.UserMessage, unknownQuestion),
		"context", leadContext,
	)
	return domain.NotificationReceipt{
		Kind:    domain.NotificationHandover,
		Status:  domain.StatusLeadHandedOver,
		Context: leadContext,
	}, nil
}

// HandoverContext summarises a lead for the manager.
func HandoverContext(lead domain.Handover) string {
	return fmt.Sprintf("Запрошенная деталь: %s, модель и год: %s",
		orDefault(lead.RequestedPart, unknownPart),
		orDefault(lead.ModelYear, unknownModel),
	)
}

func missingInvoiceFields(inv domain.Invoice) []string {
	var missing []string
	if strings.TrimSpace(inv.ClientName) == "" {
		missing = append(missing, "client_name")
	}
	if strings.TrimSpace(inv.Contact) == "" {
		missing = append(missing, "contact")
	}
	if strings.TrimSpace(inv.PartArticle) == "" {
		missing = append(missing, "part_article")
	}
	if strings.TrimSpace(inv.PartName) == "" {
		missing = append(missing, "part_name")
	}
	if inv.Price <= 0 {
		missing = append(missing, "price")
	}
	return missing
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
