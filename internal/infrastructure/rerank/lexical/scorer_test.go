package lexical

import (
	"context"
	"testing"
)

func TestScorePrefersCoveringText(t *testing.T) {
	scores, err := New().Score(context.Background(), "задняя фара Vento 2010", []string{
		"Моторчик стеклоочистителя, XDrive 2005-2012",
		"Фара задняя левая, Vento 2009-2014",
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores[1] <= scores[0] {
		t.Fatalf("expected tail light to outscore wiper motor, got %v", scores)
	}
}

func TestScoreStemMatchesInflections(t *testing.T) {
	scores, _ := New().Score(context.Background(), "air filters", []string{"Air filter", "Oil pump"})
	if scores[0] < coverageWeight {
		t.Fatalf("expected full coverage through stem match, got %v", scores[0])
	}
	if scores[1] != 0 {
		t.Fatalf("expected zero score for unrelated text, got %v", scores[1])
	}
}

func TestScoreEmptyInputs(t *testing.T) {
	scores, err := New().Score(context.Background(), "", []string{"anything"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores[0] != 0 {
		t.Fatalf("expected zero for empty query, got %v", scores[0])
	}

	scores, err = New().Score(context.Background(), "query", nil)
	if err != nil || len(scores) != 0 {
		t.Fatalf("expected empty result, got %v, %v", scores, err)
	}
}

func TestScoreHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Score(ctx, "q", []string{"q"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSplitAlphaNumLower(t *testing.T) {
	got := splitAlphaNumLower("LMB-301, Лямбда-зонд!")
	want := []string{"lmb", "301", "лямбда", "зонд"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
