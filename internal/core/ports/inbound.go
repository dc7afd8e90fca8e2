package ports

import (
	"context"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// CatalogRetriever is the read side of the retrieval core.
type CatalogRetriever interface {
	Search(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.SearchHit, error)
	Rerank(ctx context.Context, candidates []domain.SearchHit, query string, topK int) ([]domain.RankedHit, error)
	Catalog() (*domain.Catalog, error)
}

// CatalogIndexer rebuilds the retrieval index from a fresh corpus.
type CatalogIndexer interface {
	BuildIndex(ctx context.Context, chunks []domain.Chunk) error
}

// DialogueService is the inbound contract for conversation turns.
type DialogueService interface {
	Start(ctx context.Context) (*domain.ConversationState, error)
	Send(ctx context.Context, conversationID, message string) (*domain.TurnReply, error)
	Get(ctx context.Context, conversationID string) (*domain.ConversationState, error)
}

// NotificationProcessor handles queued notification commands in the worker.
type NotificationProcessor interface {
	Process(ctx context.Context, cmd domain.NotificationCommand) (domain.NotificationReceipt, error)
}
