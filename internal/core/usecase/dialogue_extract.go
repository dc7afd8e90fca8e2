package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

const (
	minModelYear = 1990
	maxModelYear = 2025

	maxRequestedPartTokens = 4
)

var (
	yearPattern      = regexp.MustCompile(`\b(\d{4})\b`)
	wordPattern      = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}-]*`)
	phonePattern     = regexp.MustCompile(`(?:^|[^\d+])(\+?\d{10,12})(?:$|\D)`)
	yearRangePattern = regexp.MustCompile(`(\d{4})\s*[-–—]\s*(\d{4})`)
	qualifierPattern = regexp.MustCompile(`\([^)]*\)`)
)

// Capitalized words that open a sentence rather than name a car model.
var nonModelWords = map[string]struct{}{
	"hello": {}, "hi": {}, "hey": {}, "good": {}, "please": {}, "i": {}, "my": {}, "we": {},
	"need": {}, "want": {}, "looking": {}, "do": {}, "can": {}, "could": {}, "is": {}, "the": {},
	"what": {}, "which": {}, "how": {}, "it": {}, "this": {}, "that": {}, "thanks": {}, "thank": {},
	"yes": {}, "no": {}, "ok": {}, "okay": {}, "спасибо": {}, "да": {}, "нет": {}, "что": {}, "какой": {},
	"это": {},
	"привет": {}, "здравствуйте": {}, "добрый": {}, "день": {}, "нужен": {}, "нужна": {},
	"нужно": {}, "хочу": {}, "ищу": {}, "есть": {}, "подскажите": {}, "у": {}, "меня": {},
}

var requestStopWords = map[string]struct{}{
	"i": {}, "a": {}, "an": {}, "the": {}, "have": {}, "has": {}, "want": {}, "need": {}, "my": {},
	"for": {}, "to": {}, "of": {}, "on": {}, "and": {}, "with": {}, "please": {}, "looking": {},
	"buy": {}, "order": {}, "car": {}, "year": {}, "model": {}, "hello": {}, "hi": {}, "is": {},
	"it": {}, "me": {}, "do": {}, "you": {}, "can": {}, "get": {}, "am": {}, "im": {}, "from": {},
	"у": {}, "меня": {}, "мне": {}, "нужен": {}, "нужна": {}, "нужно": {}, "нужны": {}, "хочу": {},
	"купить": {}, "ищу": {}, "на": {}, "для": {}, "и": {}, "в": {}, "года": {}, "год": {}, "г": {},
	"машина": {}, "машины": {}, "авто": {}, "есть": {}, "привет": {}, "здравствуйте": {},
	"пожалуйста": {}, "подскажите": {}, "мой": {}, "моя": {},
}

// ExtractYear returns the first four-digit number in the plausible model-year
// range together with its literal token.
func ExtractYear(text string) (int, string, bool) {
	for _, m := range yearPattern.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if year >= minModelYear && year <= maxModelYear {
			return year, m[1], true
		}
	}
	return 0, "", false
}

// ExtractModel picks a capitalized word of two or more characters. A word
// directly followed by the year token wins; otherwise the first one does.
func ExtractModel(text, yearToken string) string {
	words := wordPattern.FindAllString(text, -1)
	first := ""
	for i, w := range words {
		if !looksLikeModel(w) {
			continue
		}
		if yearToken != "" && i+1 < len(words) && words[i+1] == yearToken {
			return w
		}
		if first == "" {
			first = w
		}
	}
	return first
}

func looksLikeModel(word string) bool {
	if utf8.RuneCountInString(word) < 2 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(word)
	if !unicode.IsUpper(r) {
		return false
	}
	_, skip := nonModelWords[strings.ToLower(word)]
	return !skip
}

// ExtractClientName returns the first capitalized alphabetic word.
func ExtractClientName(text string) string {
	for _, w := range wordPattern.FindAllString(text, -1) {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) {
			continue
		}
		alpha := true
		for _, c := range w {
			if !unicode.IsLetter(c) && c != '-' {
				alpha = false
				break
			}
		}
		if alpha {
			return w
		}
	}
	return ""
}

// ExtractPhone returns the first run of 10 to 12 digits, optionally prefixed with +.
func ExtractPhone(text string) string {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractRequestedPart finds the part the customer is asking for: the first
// run of consecutive catalog name tokens in the message. When the message has
// no such token and fallback is set, the remaining content words are used.
func ExtractRequestedPart(text, model, yearToken string, vocabulary map[string]struct{}, fallback bool) string {
	skip := make(map[string]struct{}, 4)
	for _, tok := range wordTokens(model) {
		skip[tok] = struct{}{}
	}
	if yearToken != "" {
		skip[yearToken] = struct{}{}
	}

	known := make([]string, 0, 4)
	rest := make([]string, 0, 4)
	for _, tok := range wordTokens(text) {
		_, skipped := skip[tok]
		_, inVocab := vocabulary[tok]
		if inVocab && !skipped {
			known = append(known, tok)
			continue
		}
		if len(known) > 0 {
			break
		}
		if _, stop := requestStopWords[tok]; stop || skipped || isDigits(tok) {
			continue
		}
		rest = append(rest, tok)
	}
	if len(known) > 0 {
		return strings.Join(known, " ")
	}
	if !fallback || len(rest) == 0 {
		return ""
	}
	if len(rest) > maxRequestedPartTokens {
		rest = rest[:maxRequestedPartTokens]
	}
	return strings.Join(rest, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// partVocabulary collects the lowercase tokens of every part name, minus
// stop words and parenthesized qualifiers such as "(аналог Depo)", so
// "washer" in a message can be tied to a catalog item.
func partVocabulary(parts []domain.PartRecord) map[string]struct{} {
	vocab := make(map[string]struct{}, len(parts)*3)
	for _, p := range parts {
		for _, tok := range wordTokens(nameHead(p.Name)) {
			if _, stop := requestStopWords[tok]; stop {
				continue
			}
			vocab[tok] = struct{}{}
		}
	}
	return vocab
}

// nameHead drops parenthesized qualifiers from a part name.
func nameHead(name string) string {
	return strings.TrimSpace(qualifierPattern.ReplaceAllString(name, " "))
}

// MatchesPartName reports whether any token of the requested part occurs in
// the record name outside its parenthesized qualifiers.
func MatchesPartName(requested, name string) bool {
	lowerName := strings.ToLower(nameHead(name))
	for _, tok := range wordTokens(requested) {
		if strings.Contains(lowerName, tok) {
			return true
		}
	}
	return false
}

// MatchesCompatibility reports whether a compatibility entry covers the car.
// The model must occur in the entry (case-insensitive); when the entry carries
// a "YYYY-YYYY" range the year must fall inside it, bounds included.
func MatchesCompatibility(entry, model string, year int) bool {
	model = strings.TrimSpace(model)
	if model == "" {
		return false
	}
	if !strings.Contains(strings.ToLower(entry), strings.ToLower(model)) {
		return false
	}
	m := yearRangePattern.FindStringSubmatch(entry)
	if m == nil {
		return true
	}
	from, err1 := strconv.Atoi(m[1])
	to, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return false
	}
	if from > to {
		from, to = to, from
	}
	return year >= from && year <= to
}

// PartFits reports whether any compatibility entry of the record covers the car.
func PartFits(part domain.PartRecord, model string, year int) bool {
	for _, entry := range part.Compatibility {
		if MatchesCompatibility(entry, model, year) {
			return true
		}
	}
	return false
}
