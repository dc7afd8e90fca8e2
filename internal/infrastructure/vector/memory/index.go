package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// Index is an exact flat index over squared Euclidean distance.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

func New() *Index {
	return &Index{}
}

func (i *Index) Reset(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "memory index reset", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dimension = dimension
	i.vectors = nil
	return nil
}

func (i *Index) Add(_ context.Context, vectors [][]float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for n, vec := range vectors {
		if len(vec) != i.dimension {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"memory index add",
				fmt.Errorf("vector %d has dimension %d, want %d", n, len(vec), i.dimension),
			)
		}
	}
	for _, vec := range vectors {
		cp := make([]float32, len(vec))
		copy(cp, vec)
		i.vectors = append(i.vectors, cp)
	}
	return nil
}

func (i *Index) Search(_ context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "memory index search", fmt.Errorf("k must be >= 1, got %d", k))
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(query) != i.dimension {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"memory index search",
			fmt.Errorf("query has dimension %d, want %d", len(query), i.dimension),
		)
	}

	all := make([]domain.Neighbor, 0, len(i.vectors))
	for pos, vec := range i.vectors {
		all = append(all, domain.Neighbor{Position: pos, Distance: squaredL2(query, vec)})
	}
	// Stable sort keeps insertion order among equal distances.
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].Distance < all[b].Distance
	})

	out := make([]domain.Neighbor, k)
	for n := range out {
		if n < len(all) {
			out[n] = all[n]
			continue
		}
		out[n] = domain.Neighbor{Position: domain.NoMatchPosition, Distance: -1}
	}
	return out, nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.vectors)
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for n := range a {
		d := float64(a[n]) - float64(b[n])
		sum += d * d
	}
	return sum
}
