package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
	"github.com/kirillkom/parts-sales-assistant/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// Retriever owns the corpus and the vector index. Search is a coarse
// distance-ordered recall over the whole index; Rerank rescores a short list
// with the pairwise relevance scorer and orders it by descending score.
type Retriever struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	scorer    ports.RelevanceScorer
	batchSize int

	mu        sync.RWMutex
	catalog   *domain.Catalog
	dimension int
	vectors   [][]float32
}

func NewRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	scorer ports.RelevanceScorer,
	batchSize int,
) *Retriever {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		scorer:    scorer,
		batchSize: batchSize,
	}
}

// BuildIndex embeds every chunk and replaces the previous index and corpus.
// Concurrent searches wait until the swap completes. When loading the new
// vectors fails the previous corpus is loaded back and keeps serving.
func (r *Retriever) BuildIndex(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrEmptyCorpus, "build index", errors.New("no chunks supplied"))
	}

	catalog, err := domain.NewCatalog(chunks)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	vectors, err := r.embedChunks(ctx, catalog.Chunks())
	if err != nil {
		return err
	}

	dimension := len(vectors[0])
	if dimension == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("embedder returned empty vectors"))
	}
	for i, vec := range vectors {
		if len(vec) != dimension {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"build index",
				fmt.Errorf("chunk %d: vector dimension %d, expected %d", i, len(vec), dimension),
			)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(ctx, dimension, vectors); err != nil {
		if restoreErr := r.restore(ctx); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	r.catalog = catalog
	r.dimension = dimension
	r.vectors = vectors
	return nil
}

func (r *Retriever) load(ctx context.Context, dimension int, vectors [][]float32) error {
	if err := r.index.Reset(ctx, dimension); err != nil {
		return fmt.Errorf("reset vector index: %w", err)
	}
	if err := r.index.Add(ctx, vectors); err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	return nil
}

// restore reloads the last good corpus into the index. Callers hold mu.
// Without a previous corpus, or when reloading fails too, the retriever
// is left unbuilt.
func (r *Retriever) restore(ctx context.Context) error {
	if r.catalog == nil {
		return nil
	}
	if err := r.load(context.WithoutCancel(ctx), r.dimension, r.vectors); err != nil {
		r.catalog = nil
		r.dimension = 0
		r.vectors = nil
		return fmt.Errorf("restore previous index: %w", err)
	}
	return nil
}

func (r *Retriever) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += r.batchSize {
		end := start + r.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}
		batch, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), len(texts)),
			)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Search returns at most topK hits ordered by increasing distance.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	if topK < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("topK must be >= 1, got %d", topK))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.catalog == nil {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "search", errors.New("call BuildIndex first"))
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) != r.dimension {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"search",
			fmt.Errorf("query vector dimension %d, expected %d", len(queryVector), r.dimension),
		)
	}

	neighbors, err := r.index.Search(ctx, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}

	out := make([]domain.SearchHit, 0, topK)
	for _, n := range neighbors {
		if n.Position == domain.NoMatchPosition {
			continue
		}
		chunk, ok := r.catalog.Chunk(n.Position)
		if !ok {
			continue
		}
		if filter.MaxDistance != nil && n.Distance > *filter.MaxDistance {
			continue
		}
		if filter.Kind != "" && chunk.Kind != filter.Kind {
			continue
		}
		out = append(out, domain.SearchHit{Position: n.Position, Chunk: chunk, Distance: n.Distance})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Position < out[j].Position
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Rerank scores each candidate against the query and returns at most topK
// hits ordered by decreasing relevance. topK <= 0 keeps every candidate.
func (r *Retriever) Rerank(ctx context.Context, candidates []domain.SearchHit, query string, topK int) ([]domain.RankedHit, error) {
	if len(candidates) == 0 {
		return []domain.RankedHit{}, nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, c.Chunk.Text)
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"rerank",
			fmt.Errorf("scores/candidates mismatch: %d/%d", len(scores), len(candidates)),
		)
	}

	ranked := make([]domain.RankedHit, 0, len(candidates))
	for i, c := range candidates {
		ranked = append(ranked, domain.RankedHit{Position: c.Position, Chunk: c.Chunk, Score: scores[i]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Position < ranked[j].Position
	})
	return ranked[:topK], nil
}

// Catalog returns the corpus the current index was built from.
func (r *Retriever) Catalog() (*domain.Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.catalog == nil {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "catalog", errors.New("call BuildIndex first"))
	}
	return r.catalog, nil
}
