package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// Index keeps vectors in an embedded chromem-go collection. chromem stores
// normalized vectors and ranks by cosine similarity, so distances are reported
// as the squared Euclidean distance between unit vectors (2 - 2*similarity).
type Index struct {
	db         *chromem.DB
	name       string
	mu         sync.RWMutex
	collection *chromem.Collection
	dimension  int
}

func New(collection string) *Index {
	return &Index{
		db:   chromem.NewDB(),
		name: collection,
	}
}

// NewPersistent stores the collection under dir so it survives restarts.
func NewPersistent(dir, collection string) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Index{db: db, name: collection}, nil
}

func (i *Index) Reset(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chromem reset", fmt.Errorf("dimension must be positive, got %d", dimension))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.db.DeleteCollection(i.name); err != nil {
		return fmt.Errorf("drop chromem collection: %w", err)
	}
	c, err := i.db.GetOrCreateCollection(i.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("create chromem collection: %w", err)
	}
	i.collection = c
	i.dimension = dimension
	return nil
}

func (i *Index) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.collection == nil {
		return domain.WrapError(domain.ErrIndexNotBuilt, "chromem add", errors.New("collection is not initialised"))
	}

	offset := i.collection.Count()
	docs := make([]chromem.Document, 0, len(vectors))
	for n, vec := range vectors {
		if len(vec) != i.dimension {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"chromem add",
				fmt.Errorf("vector %d has dimension %d, want %d", n, len(vec), i.dimension),
			)
		}
		position := offset + n
		embedding := make([]float32, len(vec))
		copy(embedding, vec)
		docs = append(docs, chromem.Document{
			ID:        strconv.Itoa(position),
			Metadata:  map[string]string{"position": strconv.Itoa(position)},
			Embedding: embedding,
		})
	}

	if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add chromem documents: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chromem search", fmt.Errorf("k must be >= 1, got %d", k))
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.collection == nil {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "chromem search", errors.New("collection is not initialised"))
	}
	if len(query) != i.dimension {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"chromem search",
			fmt.Errorf("query has dimension %d, want %d", len(query), i.dimension),
		)
	}

	out := make([]domain.Neighbor, 0, k)
	// chromem rejects nResults larger than the collection.
	n := min(k, i.collection.Count())
	if n > 0 {
		results, err := i.collection.QueryEmbedding(ctx, query, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("query chromem collection: %w", err)
		}
		for _, r := range results {
			position, err := strconv.Atoi(r.ID)
			if err != nil {
				return nil, fmt.Errorf("parse chromem document id %q: %w", r.ID, err)
			}
			distance := 2 - 2*float64(r.Similarity)
			if distance < 0 {
				distance = 0
			}
			out = append(out, domain.Neighbor{Position: position, Distance: distance})
		}
		sort.SliceStable(out, func(a, b int) bool {
			if out[a].Distance == out[b].Distance {
				return out[a].Position < out[b].Position
			}
			return out[a].Distance < out[b].Distance
		})
	}
	for len(out) < k {
		out = append(out, domain.Neighbor{Position: domain.NoMatchPosition, Distance: -1})
	}
	return out, nil
}

// noEmbedding is installed as the collection embedding func; every document
// and query arrives with its own vector.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem index expects precomputed embeddings")
}
