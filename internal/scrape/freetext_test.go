package scrape

import (
	"testing"
	"time"
)

func TestExtractFreeTextDate(t *testing.T) {
	reference := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		text     string
		wantDate string
	}{
		{"absolute phrase", "Added on 3 March 2025 by the agent", "2025-03-03"},
		{"absolute with ordinal", "Listed on 21st June 2025", "2025-06-21"},
		{"first listed variant", "First listed on 12 January 2024", "2024-01-12"},
		{"slash phrase", "Added on 3/4/2025", "2025-04-03"},
		{"slash without on", "Listed 03/04/2025", "2025-04-03"},
		{"today", "Added today", "2025-10-01"},
		{"yesterday", "Added yesterday", "2025-09-30"},
		{"days ago", "Added 5 days ago", "2025-09-26"},
		{"single day ago", "Listed 1 day ago", "2025-09-30"},
		{"weeks ago", "Added 3 weeks ago", "2025-09-10"},
		{"months ago", "Added 2 months ago", "2025-08-01"},
		{"no phrase", "A lovely three bedroom house near the park", ""},
		{"date without anchor word", "Completed on 3 March 2025", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractFreeTextDate(tt.text, reference)
			if result.Date != tt.wantDate {
				t.Errorf("date = %q, want %q", result.Date, tt.wantDate)
			}
			if tt.wantDate == "" {
				if result.Source != SourceNone || result.RawSnippet != "" {
					t.Errorf("expected empty result, got %+v", result)
				}
			} else if result.Source != SourceText {
				t.Errorf("source = %q, want text", result.Source)
			}
		})
	}
}

func TestExtractFreeTextDate_FamilyOrder(t *testing.T) {
	// Absolute phrase wins over a relative phrase elsewhere in the text.
	reference := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	text := "Added 3 weeks ago ... Added on 1 February 2025"

	result := extractFreeTextDate(text, reference)
	if result.Date != "2025-02-01" {
		t.Errorf("expected absolute family to win, got %q", result.Date)
	}
}

func TestExtractFreeTextDate_SnippetReported(t *testing.T) {
	result := extractFreeTextDate("Added on 3 March 2025", time.Now())
	if result.RawSnippet != "Added on 3 March 2025" {
		t.Errorf("snippet = %q", result.RawSnippet)
	}
}
