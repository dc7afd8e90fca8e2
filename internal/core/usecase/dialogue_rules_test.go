package usecase

import (
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

func TestDefaultRulesMatching(t *testing.T) {
	tests := []struct {
		stage   domain.Stage
		message string
		want    string
	}{
		{domain.StageOfferPart, "I'll take the original", "choose_original"},
		{domain.StageOfferPart, "Беру оригинал", "choose_original"},
		{domain.StageOfferPart, "something cheaper?", "choose_analogue"},
		{domain.StageOfferPart, "Аналог нормальный?", "analogue_quality"},
		{domain.StageOfferPart, "is the analogue any good?", "analogue_quality"},
		{domain.StageOfferPart, "that is too much", "price_objection"},
		{domain.StageOfferPart, "Дороговато", "price_objection"},
		{domain.StageOfferPart, "ok, go ahead", "affirm"},
		{domain.StageOfferPart, "Сколько доставка?", "complex_request"},
		{domain.StageOfferPart, "Can a manager call me?", "complex_request"},
		{domain.StageHandleObjection, "ok, proceed", "affirm"},
		{domain.StageHandleObjection, "give me the aftermarket one", "choose_analogue"},
		{domain.StageHandleObjection, "ok, cheaper one", "affirm"},
		{domain.StageOfferPart, "ok, cheaper one", "choose_analogue"},
		{domain.StageHandleObjection, "too expensive anyway", ""},
		{domain.StageOfferPart, "hmm", ""},
		{domain.StageOfferPart, "okayish", ""},
	}

	rules := DefaultRules()
	for _, tt := range tests {
		rule, ok := matchRule(rules, tt.stage, parseMessage(tt.message))
		got := ""
		if ok {
			got = rule.Name
		}
		if got != tt.want {
			t.Fatalf("%s %q: matched %q, want %q", tt.stage, tt.message, got, tt.want)
		}
	}
}

func TestRulesForStageOrdersByPriority(t *testing.T) {
	rules := []Rule{
		{Name: "late", Stages: []domain.Stage{domain.StageOfferPart}, Priority: 90, Keywords: []string{"yes"}},
		{Name: "other", Stages: []domain.Stage{domain.StageHandleObjection}, Priority: 1, Keywords: []string{"yes"}},
		{Name: "early", Stages: []domain.Stage{domain.StageOfferPart}, Priority: 5, Keywords: []string{"yes"}},
	}
	got := rulesForStage(rules, domain.StageOfferPart)
	if len(got) != 2 || got[0].Name != "early" || got[1].Name != "late" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestRulesForStageAppliesStagePriority(t *testing.T) {
	rules := []Rule{
		{Name: "first", Stages: []domain.Stage{domain.StageOfferPart, domain.StageHandleObjection}, Priority: 10},
		{
			Name:          "second",
			Stages:        []domain.Stage{domain.StageOfferPart, domain.StageHandleObjection},
			Priority:      20,
			StagePriority: map[domain.Stage]int{domain.StageHandleObjection: 5},
		},
	}
	if got := rulesForStage(rules, domain.StageOfferPart); got[0].Name != "first" {
		t.Fatalf("offer_part: unexpected order %+v", got)
	}
	if got := rulesForStage(rules, domain.StageHandleObjection); got[0].Name != "second" {
		t.Fatalf("handle_objection: unexpected order %+v", got)
	}
}

func TestMessageKeywordForms(t *testing.T) {
	m := parseMessage("Go ahead, the ORIGINALS look fine")
	if !m.contains("go ahead") {
		t.Fatal("expected phrase match")
	}
	if !m.contains("origin*") {
		t.Fatal("expected stem match")
	}
	if m.contains("origin") {
		t.Fatal("plain keyword must match a whole word")
	}
	if m.contains("ahead the originals look fine ok") {
		t.Fatal("phrase longer than message must not match")
	}
}
