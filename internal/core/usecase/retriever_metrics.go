package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
)

// InstrumentedRetriever records latency and hit counts of the search and
// rerank stages.
type InstrumentedRetriever struct {
	next    ports.CatalogRetriever
	metrics ports.RetrievalMetrics
	now     func() time.Time
}

func NewInstrumentedRetriever(next ports.CatalogRetriever, metrics ports.RetrievalMetrics) *InstrumentedRetriever {
	return &InstrumentedRetriever{next: next, metrics: metrics, now: time.Now}
}

func (r *InstrumentedRetriever) Search(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	start := r.now()
	hits, err := r.next.Search(ctx, query, topK, filter)
	if err == nil {
		r.metrics.RecordRetrieval("search", len(hits), r.now().Sub(start))
	}
	return hits, err
}

func (r *InstrumentedRetriever) Rerank(ctx context.Context, candidates []domain.SearchHit, query string, topK int) ([]domain.RankedHit, error) {
	start := r.now()
	ranked, err := r.next.Rerank(ctx, candidates, query, topK)
	if err == nil {
		r.metrics.RecordRetrieval("rerank", len(ranked), r.now().Sub(start))
	}
	return ranked, err
}

func (r *InstrumentedRetriever) Catalog() (*domain.Catalog, error) {
	return r.next.Catalog()
}
