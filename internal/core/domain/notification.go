package domain

import "time"

type NotificationKind string

const (
	NotificationInvoice  NotificationKind = "invoice"
	NotificationHandover NotificationKind = "handover"
)

const (
	StatusInvoiceSent    = "invoice_sent"
	StatusLeadHandedOver = "lead_handed_over"
	StatusError          = "error"
	// StatusQueued means the command was handed to the worker queue.
	StatusQueued = "queued"
)

type Invoice struct {
	ClientName  string `json:"client_name"`
	Contact     string `json:"contact"`
	PartArticle string `json:"part_article"`
	PartName    string `json:"part_name"`
	Price       int    `json:"price"`
	ModelYear   string `json:"model_year"`
}

type Handover struct {
	RequestedPart string `json:"requested_part"`
	ModelYear     string `json:"model_year"`
	UserMessage   string `json:"user_msg"`
	ClientName    string `json:"client_name,omitempty"`
	Contact       string `json:"contact,omitempty"`
}

// NotificationCommand is a side effect requested by a dialogue turn.
// Exactly one of Invoice or Handover is set, matching Kind.
type NotificationCommand struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Kind           NotificationKind `json:"kind"`
	Invoice        *Invoice         `json:"invoice,omitempty"`
	Handover       *Handover        `json:"handover,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func InvoiceCommand(invoice Invoice) NotificationCommand {
	return NotificationCommand{Kind: NotificationInvoice, Invoice: &invoice}
}

func HandoverCommand(handover Handover) NotificationCommand {
	return NotificationCommand{Kind: NotificationHandover, Handover: &handover}
}

type InvoiceItem struct {
	Name     string `json:"name"`
	Article  string `json:"article"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type NotificationReceipt struct {
	Kind       NotificationKind `json:"kind"`
	Status     string           `json:"status"`
	Message    string           `json:"message,omitempty"`
	Items      []InvoiceItem    `json:"items,omitempty"`
	TotalPrice int              `json:"total_price,omitempty"`
	Context    string           `json:"context,omitempty"`
}
