package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

const sampleCatalog = `
parts:
  - id: mtr-101-o
    name: Моторчик омывателя
    article: MTR-101-O
    price: 2100
    original: true
    compatibility: ["XDrive 2005-2012"]
  - article: MTR-101-A
    name: Моторчик омывателя (аналог)
    price: 1350
    compatibility: ["XDrive 2005-2012"]
    text: custom description
phrases:
  - situation: greeting
    phrases: ["Здравствуйте!"]
`

func TestDecodeBuildsChunksInOrder(t *testing.T) {
	chunks, err := Decode(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Kind != domain.ChunkKindPart || !chunks[0].Part.IsOriginal {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if !strings.Contains(chunks[0].Text, "MTR-101-O") || !strings.Contains(chunks[0].Text, "XDrive 2005-2012") {
		t.Fatalf("expected generated part text, got %q", chunks[0].Text)
	}
	if chunks[1].Part.ID != "MTR-101-A" {
		t.Fatalf("expected id to default to article, got %q", chunks[1].Part.ID)
	}
	if chunks[1].Text != "custom description" {
		t.Fatalf("expected explicit text, got %q", chunks[1].Text)
	}
	if chunks[2].Kind != domain.ChunkKindPhrase || chunks[2].Phrase.Situation != "greeting" {
		t.Fatalf("unexpected phrase chunk: %+v", chunks[2])
	}
}

func TestDecodeAcceptsJSON(t *testing.T) {
	doc := `{"parts":[{"id":"a","name":"Air filter","article":"FLT-1","price":500,"compatibility":["Vento 2010-2015"]}]}`
	chunks, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Part.Price != 500 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind error
	}{
		{name: "empty", doc: "", kind: domain.ErrEmptyCorpus},
		{name: "unknown field", doc: "parts:\n  - name: x\n    colour: red\n", kind: domain.ErrInvalidCatalog},
		{name: "negative price", doc: "parts:\n  - id: x\n    name: x\n    article: X\n    price: -1\n", kind: domain.ErrInvalidCatalog},
		{name: "phrase without templates", doc: "phrases:\n  - situation: greeting\n    text: hi\n", kind: domain.ErrInvalidCatalog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.doc)); !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestFileSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	chunks, err := NewFileSource(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if _, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSampleCatalogIsValid(t *testing.T) {
	chunks, err := NewFileSource(filepath.Join("..", "..", "..", "data", "catalog.yaml")).Load(context.Background())
	if err != nil {
		t.Fatalf("load sample catalog: %v", err)
	}
	catalog, err := domain.NewCatalog(chunks)
	if err != nil {
		t.Fatalf("sample catalog: %v", err)
	}
	if len(catalog.Parts()) != 8 {
		t.Fatalf("expected 8 parts, got %d", len(catalog.Parts()))
	}
}
