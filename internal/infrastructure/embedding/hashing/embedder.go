package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultDimension = 256

	tfSaturationK = 1.2
	gramSize      = 3
	gramWeight    = 0.5
)

// Embedder is an offline dense embedder based on feature hashing. Word tokens
// and their character trigrams are hashed into a fixed number of buckets,
// weighted with a saturating term frequency and L2-normalized, so lexically
// close texts (including inflected Russian word forms) land close together.
type Embedder struct {
	dimension int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	termFreq := make(map[string]float64, 32)
	for _, token := range tokenize(text) {
		termFreq[token]++
		for _, gram := range charGrams(token) {
			termFreq["#"+gram] += gramWeight
		}
	}

	dense := make([]float64, e.dimension)
	for feature, tf := range termFreq {
		h := hashFeature(feature)
		bucket := int(h % uint32(e.dimension))
		weight := (tf * (tfSaturationK + 1.0)) / (tf + tfSaturationK)
		if h&(1<<31) != 0 {
			weight = -weight
		}
		dense[bucket] += weight
	}

	var norm float64
	for _, v := range dense {
		norm += v * v
	}
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range dense {
		out[i] = float32(v / norm)
	}
	return out
}

func hashFeature(feature string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	return h.Sum32()
}

// tokenize lowercases s and splits it into runs of letters and digits.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// charGrams returns the character trigrams of a token padded with word
// boundaries. Tokens shorter than a trigram yield no grams.
func charGrams(token string) []string {
	if utf8.RuneCountInString(token) < gramSize {
		return nil
	}
	runes := []rune("^" + token + "$")
	grams := make([]string, 0, len(runes)-gramSize+1)
	for i := 0; i+gramSize <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+gramSize]))
	}
	return grams
}
