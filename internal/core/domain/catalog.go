package domain

import (
	"fmt"
	"strings"
)

type ChunkKind string

const (
	ChunkKindPart   ChunkKind = "part"
	ChunkKindPhrase ChunkKind = "phrase"
)

// PartRecord is a single stock item. Price is kept in minor currency units.
type PartRecord struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Article       string   `json:"article" yaml:"article"`
	Price         int      `json:"price" yaml:"price"`
	IsOriginal    bool     `json:"original" yaml:"original"`
	Compatibility []string `json:"compatibility" yaml:"compatibility"`
}

// Clone returns an independent snapshot of the record.
func (p PartRecord) Clone() *PartRecord {
	out := p
	out.Compatibility = append([]string(nil), p.Compatibility...)
	return &out
}

type PhraseRecord struct {
	Situation string   `json:"situation" yaml:"situation"`
	Phrases   []string `json:"phrases" yaml:"phrases"`
}

// Chunk is one indexable unit of text. Exactly one of Part or Phrase is set,
// matching Kind.
type Chunk struct {
	Text   string        `json:"text" yaml:"text"`
	Kind   ChunkKind     `json:"kind" yaml:"kind"`
	Part   *PartRecord   `json:"part,omitempty" yaml:"part,omitempty"`
	Phrase *PhraseRecord `json:"phrase,omitempty" yaml:"phrase,omitempty"`
}

func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk text is empty")
	}
	switch c.Kind {
	case ChunkKindPart:
		if c.Part == nil || c.Phrase != nil {
			return fmt.Errorf("part chunk must carry only a part record")
		}
		return c.Part.validate()
	case ChunkKindPhrase:
		if c.Phrase == nil || c.Part != nil {
			return fmt.Errorf("phrase chunk must carry only a phrase record")
		}
		if strings.TrimSpace(c.Phrase.Situation) == "" {
			return fmt.Errorf("phrase situation is required")
		}
		if len(c.Phrase.Phrases) == 0 {
			return fmt.Errorf("phrase %q has no templates", c.Phrase.Situation)
		}
		return nil
	default:
		return fmt.Errorf("unsupported chunk kind %q", c.Kind)
	}
}

func (p *PartRecord) validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("part id is required")
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("part %s: name is required", p.ID)
	case strings.TrimSpace(p.Article) == "":
		return fmt.Errorf("part %s: article is required", p.ID)
	case p.Price < 0:
		return fmt.Errorf("part %s: negative price %d", p.ID, p.Price)
	}
	return nil
}

// Catalog is the immutable corpus shared by the retriever and the dialogue
// engine. Build it with NewCatalog; it is never modified afterwards.
type Catalog struct {
	chunks  []Chunk
	parts   []PartRecord
	phrases map[string][]string
}

func NewCatalog(chunks []Chunk) (*Catalog, error) {
	if len(chunks) == 0 {
		return nil, WrapError(ErrEmptyCorpus, "new catalog", fmt.Errorf("no chunks"))
	}

	c := &Catalog{
		chunks:  make([]Chunk, 0, len(chunks)),
		parts:   make([]PartRecord, 0, len(chunks)),
		phrases: make(map[string][]string),
	}
	ids := make(map[string]struct{}, len(chunks))
	articles := make(map[string]struct{}, len(chunks))

	for i, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return nil, WrapError(ErrInvalidCatalog, "new catalog", fmt.Errorf("chunk %d: %w", i, err))
		}
		switch chunk.Kind {
		case ChunkKindPart:
			part := chunk.Part.Clone()
			if _, dup := ids[part.ID]; dup {
				return nil, WrapError(ErrInvalidCatalog, "new catalog", fmt.Errorf("duplicate part id %s", part.ID))
			}
			if _, dup := articles[part.Article]; dup {
				return nil, WrapError(ErrInvalidCatalog, "new catalog", fmt.Errorf("duplicate article %s", part.Article))
			}
			ids[part.ID] = struct{}{}
			articles[part.Article] = struct{}{}
			c.parts = append(c.parts, *part)
			c.chunks = append(c.chunks, Chunk{Text: chunk.Text, Kind: ChunkKindPart, Part: part})
		case ChunkKindPhrase:
			phrase := &PhraseRecord{
				Situation: chunk.Phrase.Situation,
				Phrases:   append([]string(nil), chunk.Phrase.Phrases...),
			}
			c.phrases[phrase.Situation] = append(c.phrases[phrase.Situation], phrase.Phrases...)
			c.chunks = append(c.chunks, Chunk{Text: chunk.Text, Kind: ChunkKindPhrase, Phrase: phrase})
		}
	}
	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.chunks)
}

// Chunks returns the corpus in catalog order. Records are shared and must be
// treated as read-only.
func (c *Catalog) Chunks() []Chunk {
	return append([]Chunk(nil), c.chunks...)
}

func (c *Catalog) Chunk(position int) (Chunk, bool) {
	if position < 0 || position >= len(c.chunks) {
		return Chunk{}, false
	}
	return c.chunks[position], true
}

// Parts returns part records in catalog order.
func (c *Catalog) Parts() []PartRecord {
	return append([]PartRecord(nil), c.parts...)
}

func (c *Catalog) Phrases(situation string) []string {
	return c.phrases[situation]
}
