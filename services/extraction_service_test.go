// services/extraction_service_test.go
package services

import "testing"

func TestDedupeCompanies(t *testing.T) {
	in := []ExtractedCompany{
		{Name: "Acme", Domain: "https://www.acme.com/products"},
		{Name: "Globex", Domain: "globex.com"},
		{Name: "acme", Domain: "acme.com"}, // same company, case-folded
		{Name: "Acme", Domain: "acme.io"},  // different domain, kept
		{Name: "  ", Domain: "blank.com"},  // nameless entries dropped
		{Name: "Initech", Domain: ""},
	}

	got := dedupeCompanies(in)

	want := []ExtractedCompany{
		{Name: "Acme", Domain: "acme.com"},
		{Name: "Globex", Domain: "globex.com"},
		{Name: "Acme", Domain: "acme.io"},
		{Name: "Initech", Domain: ""},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d companies, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("company[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestJoinSentiments(t *testing.T) {
	companies := []ExtractedCompany{
		{Name: "Acme", Domain: "acme.com"},
		{Name: "Globex", Domain: "globex.com"},
		{Name: "Initech", Domain: "initech.com"},
	}
	scored := []SentimentExtract{
		{Name: "acme", Sentiment: 0.7},    // matched case-insensitively
		{Name: "Globex", Sentiment: -3.5}, // clamped to -1
		// Initech missing from the response entirely
	}

	got := joinSentiments(companies, scored)

	if len(got) != 3 {
		t.Fatalf("got %d scored companies, want 3", len(got))
	}
	if got[0].Sentiment != 0.7 {
		t.Errorf("Acme sentiment = %v, want 0.7", got[0].Sentiment)
	}
	if got[1].Sentiment != -1 {
		t.Errorf("Globex sentiment = %v, want clamped -1", got[1].Sentiment)
	}
	if got[2].Sentiment != 0 {
		t.Errorf("Initech sentiment = %v, want default 0", got[2].Sentiment)
	}
}

func TestClampSentiment(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{1.5, 1},
		{-2, -1},
		{1, 1},
		{-1, -1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := clampSentiment(tt.in); got != tt.want {
			t.Errorf("clampSentiment(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
