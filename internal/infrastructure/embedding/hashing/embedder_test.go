package hashing

import (
	"context"
	"math"
	"testing"
)

func distance(a, b []float32) float64 {
	var d float64
	for i := range a {
		diff := float64(a[i] - b[i])
		d += diff * diff
	}
	return d
}

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := New(64)
	vectors, err := e.Embed(context.Background(), []string{"Моторчик омывателя XDrive 2007-2012", "Моторчик омывателя XDrive 2007-2012"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 64 {
		t.Fatalf("unexpected shape: %d x %d", len(vectors), len(vectors[0]))
	}
	if distance(vectors[0], vectors[1]) != 0 {
		t.Fatal("expected identical vectors for identical text")
	}
	var norm float64
	for _, v := range vectors[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestEmbedQueryIsCloserToRelatedText(t *testing.T) {
	e := New(DefaultDimension)
	ctx := context.Background()
	docs, err := e.Embed(ctx, []string{
		"Моторчик омывателя лобового стекла, XDrive 2007-2012",
		"Воздушный фильтр двигателя, Vento 2010-2015",
	})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	query, err := e.EmbedQuery(ctx, "моторчика омывателя XDrive 2009")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if distance(query, docs[0]) >= distance(query, docs[1]) {
		t.Fatalf("expected washer motor to be nearer: %f vs %f", distance(query, docs[0]), distance(query, docs[1]))
	}
}

func TestEmbedEmptyTextGivesZeroVector(t *testing.T) {
	v, err := New(8).EmbedQuery(context.Background(), "  --- ")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestEmbedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(8).Embed(ctx, []string{"a"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCharGrams(t *testing.T) {
	grams := charGrams("фильтр")
	if len(grams) != 6 || grams[0] != "^фи" || grams[5] != "тр$" {
		t.Fatalf("unexpected grams: %v", grams)
	}
	if charGrams("ок") != nil {
		t.Fatal("short tokens should not produce grams")
	}
}
