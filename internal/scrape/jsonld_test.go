package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc
}

func TestExtractJSONLDDate(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantDate string
		wantSrc  Source
	}{
		{
			name:     "ISO timestamp normalized to date",
			html:     `<script type="application/ld+json">{"datePosted":"2025-09-10T14:22:01Z"}</script>`,
			wantDate: "2025-09-10",
			wantSrc:  SourceJSONLD,
		},
		{
			name:     "plain date passes through",
			html:     `<script type="application/ld+json">{"datePosted":"2025-09-10"}</script>`,
			wantDate: "2025-09-10",
			wantSrc:  SourceJSONLD,
		},
		{
			name:     "datePosted beats datePublished",
			html:     `<script type="application/ld+json">{"datePublished":"2025-01-01","datePosted":"2025-09-10"}</script>`,
			wantDate: "2025-09-10",
			wantSrc:  SourceJSONLD,
		},
		{
			name:     "dateCreated as last resort",
			html:     `<script type="application/ld+json">{"dateCreated":"2025-03-04"}</script>`,
			wantDate: "2025-03-04",
			wantSrc:  SourceJSONLD,
		},
		{
			name:     "array payload",
			html:     `<script type="application/ld+json">[{"@type":"Thing"},{"datePublished":"2025-02-02"}]</script>`,
			wantDate: "2025-02-02",
			wantSrc:  SourceJSONLD,
		},
		{
			name:     "graph entries scanned",
			html:     `<script type="application/ld+json">{"@graph":[{"@type":"WebPage"},{"datePosted":"2025-05-06"}]}</script>`,
			wantDate: "2025-05-06",
			wantSrc:  SourceJSONLD,
		},
		{
			name: "malformed block skipped, later block wins",
			html: `<script type="application/ld+json">{not json at all</script>
			<script type="application/ld+json">{"datePosted":"2025-06-07"}</script>`,
			wantDate: "2025-06-07",
			wantSrc:  SourceJSONLD,
		},
		{
			name:     "malformed only",
			html:     `<script type="application/ld+json">{broken</script>`,
			wantDate: "",
			wantSrc:  SourceNone,
		},
		{
			name:     "no date fields",
			html:     `<script type="application/ld+json">{"name":"3 bed house"}</script>`,
			wantDate: "",
			wantSrc:  SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractJSONLDDate(docFromHTML(t, "<html><head>"+tt.html+"</head></html>"))
			if result.Date != tt.wantDate {
				t.Errorf("date = %q, want %q", result.Date, tt.wantDate)
			}
			if result.Source != tt.wantSrc {
				t.Errorf("source = %q, want %q", result.Source, tt.wantSrc)
			}
		})
	}
}
