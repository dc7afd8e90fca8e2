package lexical

import (
	"context"
	"strings"
	"unicode"
)

const (
	coverageWeight = 0.7
	jaccardWeight  = 0.3
	// Tokens sharing a prefix this long count as the same word, which absorbs
	// most inflected endings ("фары" / "фара", "filters" / "filter").
	stemPrefixRunes = 4
)

// Scorer is a cross-scorer over word tokens: it rewards texts that cover the
// query tokens and penalises texts carrying unrelated vocabulary.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	queryTokens := toTokenSet(query)
	out := make([]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = score(queryTokens, toTokenSet(text))
	}
	return out, nil
}

func score(query, text map[string]struct{}) float64 {
	if len(query) == 0 || len(text) == 0 {
		return 0
	}

	matched := 0
	for token := range query {
		if hasToken(text, token) {
			matched++
		}
	}
	coverage := float64(matched) / float64(len(query))

	union := len(query) + len(text) - matched
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(matched) / float64(union)
	}
	return coverageWeight*coverage + jaccardWeight*jaccard
}

func hasToken(set map[string]struct{}, token string) bool {
	if _, ok := set[token]; ok {
		return true
	}
	stem := stemOf(token)
	if stem == "" {
		return false
	}
	for candidate := range set {
		if stemOf(candidate) == stem {
			return true
		}
	}
	return false
}

func stemOf(token string) string {
	runes := []rune(token)
	if len(runes) < stemPrefixRunes {
		return ""
	}
	return string(runes[:stemPrefixRunes])
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
