package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

// File is the catalog document on disk. JSON documents decode as well since
// JSON is a subset of YAML.
type File struct {
	Parts   []PartEntry   `yaml:"parts"`
	Phrases []PhraseEntry `yaml:"phrases"`
}

type PartEntry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Article       string   `yaml:"article"`
	Price         int      `yaml:"price"`
	Original      bool     `yaml:"original"`
	Compatibility []string `yaml:"compatibility"`
	// Text overrides the indexed description.
	Text string `yaml:"text"`
}

type PhraseEntry struct {
	Situation string   `yaml:"situation"`
	Phrases   []string `yaml:"phrases"`
	Text      string   `yaml:"text"`
}

// FileSource loads chunks from a YAML catalog file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Load(ctx context.Context) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}
	chunks, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", s.path, err)
	}
	return chunks, nil
}

// Decode parses a catalog document into chunks: parts first, then phrases,
// each in document order.
func Decode(r io.Reader) ([]domain.Chunk, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, domain.WrapError(domain.ErrEmptyCorpus, "decode catalog", fmt.Errorf("document is empty"))
		}
		return nil, domain.WrapError(domain.ErrInvalidCatalog, "decode catalog", err)
	}

	chunks := make([]domain.Chunk, 0, len(file.Parts)+len(file.Phrases))
	for _, p := range file.Parts {
		part := &domain.PartRecord{
			ID:            strings.TrimSpace(p.ID),
			Name:          strings.TrimSpace(p.Name),
			Article:       strings.TrimSpace(p.Article),
			Price:         p.Price,
			IsOriginal:    p.Original,
			Compatibility: p.Compatibility,
		}
		if part.ID == "" {
			part.ID = part.Article
		}
		text := strings.TrimSpace(p.Text)
		if text == "" {
			text = PartText(*part)
		}
		chunks = append(chunks, domain.Chunk{Text: text, Kind: domain.ChunkKindPart, Part: part})
	}
	for _, ph := range file.Phrases {
		phrase := &domain.PhraseRecord{
			Situation: strings.TrimSpace(ph.Situation),
			Phrases:   ph.Phrases,
		}
		text := strings.TrimSpace(ph.Text)
		if text == "" {
			text = strings.Join(ph.Phrases, " ")
		}
		chunks = append(chunks, domain.Chunk{Text: text, Kind: domain.ChunkKindPhrase, Phrase: phrase})
	}

	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidCatalog, "decode catalog", fmt.Errorf("entry %d: %w", i, err))
		}
	}
	return chunks, nil
}

// PartText is the indexed description of a part record.
func PartText(p domain.PartRecord) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(" ")
	b.WriteString(p.Article)
	if len(p.Compatibility) > 0 {
		b.WriteString(". ")
		b.WriteString(strings.Join(p.Compatibility, "; "))
	}
	if p.IsOriginal {
		b.WriteString(". original")
	} else {
		b.WriteString(". analogue")
	}
	b.WriteString(". ")
	b.WriteString(strconv.Itoa(p.Price))
	return b.String()
}
