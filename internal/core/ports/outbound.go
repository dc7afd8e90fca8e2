package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores vectors keyed by insertion position and answers
// nearest-neighbour queries. Search returns exactly k slots ordered by
// increasing distance; unused slots carry domain.NoMatchPosition.
type VectorIndex interface {
	Reset(ctx context.Context, dimension int) error
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error)
}

// RelevanceScorer scores (query, text) pairs; higher is more relevant.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// CatalogSource loads the chunk corpus.
type CatalogSource interface {
	Load(ctx context.Context) ([]domain.Chunk, error)
}

// NotificationSink delivers invoice and handover side effects.
type NotificationSink interface {
	SendInvoice(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error)
	HandOver(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error)
}

// NotificationQueue moves notification commands between the API and the worker.
type NotificationQueue interface {
	PublishNotification(ctx context.Context, cmd domain.NotificationCommand) error
	SubscribeNotifications(ctx context.Context, handler func(context.Context, domain.NotificationCommand) error) error
}

// ConversationStore persists conversation state and its history.
type ConversationStore interface {
	GetConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	SaveConversation(ctx context.Context, state domain.ConversationState, newTurns []domain.Turn) error
}

// NotificationStore persists processed notifications.
type NotificationStore interface {
	SaveInvoice(ctx context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error
	SaveHandover(ctx context.Context, cmd domain.NotificationCommand, receipt domain.NotificationReceipt) error
}

// ObjectStorage archives issued documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DialogueMetrics records dialogue outcomes. Implementations must be safe for
// concurrent use.
type DialogueMetrics interface {
	RecordTurn(from, to domain.Stage)
	RecordNotification(kind domain.NotificationKind, status string)
}

type RetrievalMetrics interface {
	RecordRetrieval(stage string, hits int, duration time.Duration)
}
