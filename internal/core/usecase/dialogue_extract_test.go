package usecase

import (
	"testing"

	"github.com/kirillkom/parts-sales-assistant/internal/core/domain"
)

func TestMatchesCompatibility(t *testing.T) {
	tests := []struct {
		entry string
		model string
		year  int
		want  bool
	}{
		{"Model 2005-2010", "Model", 2007, true},
		{"Model 2005-2010", "Model", 2011, false},
		{"Model 2005-2010", "Model", 2005, true},
		{"Model 2005-2010", "Model", 2010, true},
		{"Model 2005–2010", "Model", 2008, true},
		{"Model 2005 - 2010", "Model", 2004, false},
		{"Model", "Model", 2011, true},
		{"XDrive (all years)", "xdrive", 1999, true},
		{"Cruiser 2008-2015", "Vento", 2010, false},
		{"Cruiser 2008-2015", "", 2010, false},
	}

	for _, tt := range tests {
		if got := MatchesCompatibility(tt.entry, tt.model, tt.year); got != tt.want {
			t.Fatalf("MatchesCompatibility(%q, %q, %d) = %v, want %v", tt.entry, tt.model, tt.year, got, tt.want)
		}
	}
}

func TestPartFitsAnyEntry(t *testing.T) {
	part := domain.PartRecord{Compatibility: []string{"Vento 2010-2012", "Cruiser 2008-2015"}}
	if !PartFits(part, "Cruiser", 2012) {
		t.Fatal("expected second entry to match")
	}
	if PartFits(part, "Vento", 2013) {
		t.Fatal("expected no match outside range")
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"Cruiser 2012", 2012, true},
		{"built 1985, bought 2009", 2009, true},
		{"model year 2031", 0, false},
		{"phone 89991234567", 0, false},
		{"Vento 2010г.", 2010, true},
	}
	for _, tt := range tests {
		got, _, ok := ExtractYear(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ExtractYear(%q) = %d, %v; want %d, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractModel(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"I have a Model 2009, want part X", "Model"},
		{"Hello, my Cruiser 2012 needs a filter", "Cruiser"},
		{"Need Bosch part for Vento 2010", "Vento"},
		{"Need Bosch part for Vento", "Bosch"},
		{"У меня XDrive 2009 года", "XDrive"},
		{"no capitals here 2009", ""},
	}
	for _, tt := range tests {
		_, yearToken, _ := ExtractYear(tt.text)
		if got := ExtractModel(tt.text, yearToken); got != tt.want {
			t.Fatalf("ExtractModel(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractContact(t *testing.T) {
	tests := []struct {
		text  string
		name  string
		phone string
	}{
		{"Ivan +79991234567", "Ivan", "+79991234567"},
		{"Ольга, телефон 89991234567", "Ольга", "89991234567"},
		{"Petr 12345", "Petr", ""},
		{"anna 9991234567", "", "9991234567"},
		{"Oleg +7999123456789", "Oleg", ""},
	}
	for _, tt := range tests {
		if got := ExtractClientName(tt.text); got != tt.name {
			t.Fatalf("ExtractClientName(%q) = %q, want %q", tt.text, got, tt.name)
		}
		if got := ExtractPhone(tt.text); got != tt.phone {
			t.Fatalf("ExtractPhone(%q) = %q, want %q", tt.text, got, tt.phone)
		}
	}
}

func TestExtractRequestedPart(t *testing.T) {
	vocab := partVocabulary([]domain.PartRecord{
		{Name: "Моторчик омывателя"},
		{Name: "Воздушный фильтр"},
	})

	if got := ExtractRequestedPart("хочу воздушный фильтр на Vento 2010", "Vento", "2010", vocab, true); got != "воздушный фильтр" {
		t.Fatalf("expected catalog words, got %q", got)
	}
	if got := ExtractRequestedPart("I need brake pads for my Golf 2010", "Golf", "2010", vocab, true); got != "brake pads" {
		t.Fatalf("expected fallback words, got %q", got)
	}
	if got := ExtractRequestedPart("brake pads", "", "", vocab, false); got != "" {
		t.Fatalf("expected no fallback without model and year, got %q", got)
	}
}

func TestExtractRequestedPartTakesHeadPhrase(t *testing.T) {
	vocab := partVocabulary([]domain.PartRecord{
		{Name: "Задний фонарь"},
		{Name: "Задний фонарь (аналог Depo)"},
		{Name: "Воздушный фильтр (аналог)"},
	})
	for _, tok := range []string{"аналог", "depo"} {
		if _, ok := vocab[tok]; ok {
			t.Fatalf("qualifier %q must not be part of the vocabulary", tok)
		}
	}

	got := ExtractRequestedPart("Cruiser 2012, нужен задний фонарь, можно аналог", "Cruiser", "2012", vocab, true)
	if got != "задний фонарь" {
		t.Fatalf("expected head phrase, got %q", got)
	}
	got = ExtractRequestedPart("задний фонарь и воздушный фильтр", "", "", vocab, false)
	if got != "задний фонарь" {
		t.Fatalf("expected the first phrase only, got %q", got)
	}
}

func TestMatchesPartName(t *testing.T) {
	if !MatchesPartName("лямбда-зонд", "Лямбда-зонд (аналог)") {
		t.Fatal("expected hyphenated name to match")
	}
	if MatchesPartName("задний фонарь", "Воздушный фильтр") {
		t.Fatal("expected unrelated name not to match")
	}
	if MatchesPartName("аналог", "Воздушный фильтр (аналог)") {
		t.Fatal("qualifier words must not match")
	}
	if MatchesPartName("", "Воздушный фильтр") {
		t.Fatal("empty request must not match")
	}
}
