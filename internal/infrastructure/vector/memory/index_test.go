package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

func TestSearchOrdersByDistanceAndPads(t *testing.T) {
	ctx := context.Background()
	idx := New()
	if err := idx.Reset(ctx, 2); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{3, 0}, {1, 0}, {2, 0}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := idx.Search(ctx, []float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(got))
	}
	wantPos := []int{1, 2, 0, domain.NoMatchPosition, domain.NoMatchPosition}
	for n, pos := range wantPos {
		if got[n].Position != pos {
			t.Fatalf("slot %d: position %d, want %d (%+v)", n, got[n].Position, pos, got)
		}
	}
	if got[0].Distance != 1 || got[2].Distance != 9 {
		t.Fatalf("expected squared distances, got %+v", got)
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := New()
	_ = idx.Reset(ctx, 1)
	_ = idx.Add(ctx, [][]float32{{1}, {-1}, {1}})

	got, err := idx.Search(ctx, []float32{0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got[0].Position != 0 || got[1].Position != 1 || got[2].Position != 2 {
		t.Fatalf("unexpected tie order: %+v", got)
	}
}

func TestResetDropsVectors(t *testing.T) {
	ctx := context.Background()
	idx := New()
	_ = idx.Reset(ctx, 2)
	_ = idx.Add(ctx, [][]float32{{1, 1}})
	if err := idx.Reset(ctx, 3); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d", idx.Len())
	}
}

func TestDimensionValidation(t *testing.T) {
	ctx := context.Background()
	idx := New()
	if err := idx.Reset(ctx, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero dimension, got %v", err)
	}
	_ = idx.Reset(ctx, 2)
	if err := idx.Add(ctx, [][]float32{{1, 2}, {1}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for short vector, got %v", err)
	}
	if idx.Len() != 0 {
		t.Fatal("a rejected batch must not be partially added")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for query dimension, got %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1, 2}, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for k=0, got %v", err)
	}
}
