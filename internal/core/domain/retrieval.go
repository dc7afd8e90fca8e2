package domain

type SearchFilter struct {
	// MaxDistance drops hits farther than the bound when set.
	MaxDistance *float64
	// Kind restricts hits to one chunk kind when non-empty.
	Kind ChunkKind
}

func WithinDistance(d float64) *float64 {
	return &d
}

// Neighbor is a raw vector index slot. Position -1 marks an empty slot.
type Neighbor struct {
	Position int
	Distance float64
}

const NoMatchPosition = -1

type SearchHit struct {
	Position int     `json:"position"`
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

type RankedHit struct {
	Position int     `json:"position"`
	Chunk    Chunk   `json:"chunk"`
	Score    float64 `json:"score"`
}
