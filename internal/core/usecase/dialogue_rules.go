package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

type Effect string

const (
	EffectSelectOriginal  Effect = "select_original"
	EffectSelectAnalogue  Effect = "select_analogue"
	EffectPriceObjection  Effect = "price_objection"
	EffectAnalogueQuality Effect = "analogue_quality"
	EffectAffirm          Effect = "affirm"
	EffectHandover        Effect = "handover"
)

// Rule is one row of the keyword table. Within a stage rules are evaluated by
// ascending Priority and the first match wins. StagePriority overrides
// Priority for the listed stages.
//
// Keyword forms: "word" matches a whole token, "stem*" matches any token with
// that prefix, and a multi-word keyword matches consecutive tokens.
// A rule never fires when one of its Except keywords is present.
type Rule struct {
	Name     string
	Stages   []domain.Stage
	Priority int
	// StagePriority reorders the rule in stages where it must run earlier or later.
	StagePriority map[domain.Stage]int
	Keywords      []string
	Except        []string
	Next          domain.Stage
	Effect        Effect
}

func (r Rule) appliesTo(stage domain.Stage) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

func (r Rule) priorityIn(stage domain.Stage) int {
	if p, ok := r.StagePriority[stage]; ok {
		return p
	}
	return r.Priority
}

func (r Rule) matches(m message) bool {
	if m.containsAny(r.Except) {
		return false
	}
	return m.containsAny(r.Keywords)
}

var analogueQualityKeywords = []string{
	"quality", "reliable", "reliability", "any good", "is it good", "trust",
	"нормальн*", "качеств*", "надежн*", "надёжн*",
}

// DefaultRules returns the offer/objection keyword table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "choose_original",
			Stages:   []domain.Stage{domain.StageOfferPart},
			Priority: 10,
			Keywords: []string{"original", "originals", "oem", "genuine", "оригинал*"},
			Next:     domain.StageAwaitContactInfo,
			Effect:   EffectSelectOriginal,
		},
		{
			Name:     "choose_analogue",
			Stages:   []domain.Stage{domain.StageOfferPart, domain.StageHandleObjection},
			Priority: 20,
			Keywords: []string{
				"analogue", "analog", "aftermarket", "cheaper", "cheap", "budget",
				"аналог*", "дешевл*", "подешевле", "бюджет*",
			},
			Except: analogueQualityKeywords,
			Next:   domain.StageAwaitContactInfo,
			Effect: EffectSelectAnalogue,
		},
		{
			Name:     "price_objection",
			Stages:   []domain.Stage{domain.StageOfferPart},
			Priority: 30,
			Keywords: []string{"expensive", "pricey", "too much", "overpriced", "дорог*"},
			Next:     domain.StageHandleObjection,
			Effect:   EffectPriceObjection,
		},
		{
			Name:     "analogue_quality",
			Stages:   []domain.Stage{domain.StageOfferPart},
			Priority: 40,
			Keywords: analogueQualityKeywords,
			Next:     domain.StageOfferPart,
			Effect:   EffectAnalogueQuality,
		},
		{
			Name:     "affirm",
			Stages:   []domain.Stage{domain.StageOfferPart, domain.StageHandleObjection},
			Priority: 50,
			// After an objection a plain agreement proceeds with the offer even
			// when it also mentions the cheaper option.
			StagePriority: map[domain.Stage]int{domain.StageHandleObjection: 15},
			Keywords: []string{
				"yes", "ok", "okay", "proceed", "order", "go ahead", "deal", "buy", "fine", "sure",
				"да", "давайте", "оформляйте", "оформить", "хорошо", "беру", "согласен", "согласна",
			},
			Next:   domain.StageAwaitContactInfo,
			Effect: EffectAffirm,
		},
		{
			Name:     "complex_request",
			Stages:   []domain.Stage{domain.StageOfferPart},
			Priority: 60,
			Keywords: []string{
				"vin", "manager", "delivery", "deliver", "shipping", "warranty", "guarantee", "call",
				"менеджер*", "доставк*", "доставит*", "гаранти*", "позвон*",
			},
			Next:   domain.StageHandoverDone,
			Effect: EffectHandover,
		},
	}
}

// rulesForStage returns the rules for one stage in evaluation order.
func rulesForStage(rules []Rule, stage domain.Stage) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.appliesTo(stage) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].priorityIn(stage) < out[j].priorityIn(stage) })
	return out
}

func matchRule(rules []Rule, stage domain.Stage, m message) (Rule, bool) {
	for _, r := range rulesForStage(rules, stage) {
		if r.matches(m) {
			return r, true
		}
	}
	return Rule{}, false
}

// message is a user utterance split into lowercase word tokens.
type message struct {
	raw    string
	tokens []string
	padded string
}

func parseMessage(raw string) message {
	tokens := wordTokens(raw)
	return message{
		raw:    raw,
		tokens: tokens,
		padded: " " + strings.Join(tokens, " ") + " ",
	}
}

func (m message) containsAny(keywords []string) bool {
	for _, kw := range keywords {
		if m.contains(kw) {
			return true
		}
	}
	return false
}

func (m message) contains(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	if stem, ok := strings.CutSuffix(keyword, "*"); ok {
		for _, tok := range m.tokens {
			if strings.HasPrefix(tok, stem) {
				return true
			}
		}
		return false
	}
	phrase := wordTokens(keyword)
	if len(phrase) == 0 {
		return false
	}
	return strings.Contains(m.padded, " "+strings.Join(phrase, " ")+" ")
}

// wordTokens lowercases s and splits it on anything that is not a letter or digit.
func wordTokens(s string) []string {
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
