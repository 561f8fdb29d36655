package scrape

import (
	"testing"
)

func TestExtractEmbeddedModelDate(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantDate string
	}{
		{
			name:     "window assignment",
			html:     `<script>window.PAGE_MODEL = {"propertyData":{"addedOn":"2025-08-15"}};</script>`,
			wantDate: "2025-08-15",
		},
		{
			name:     "var assignment",
			html:     `<script>var appState = {"listedDate":"2025-07-20"};</script>`,
			wantDate: "2025-07-20",
		},
		{
			name:     "const assignment",
			html:     `<script>const data = {"meta":{"firstListedDate":"2025-06-01"}};</script>`,
			wantDate: "2025-06-01",
		},
		{
			name:     "bare object via brace scan",
			html:     `<script>someCall({"info":{"addedDate":"2025-05-05"}});</script>`,
			wantDate: "2025-05-05",
		},
		{
			name:     "slash date normalized",
			html:     `<script>var m = {"addedOn":"15/08/2025"};</script>`,
			wantDate: "2025-08-15",
		},
		{
			name:     "key match is case-insensitive substring",
			html:     `<script>var m = {"listingAddedOnDate":"2025-04-04"};</script>`,
			wantDate: "2025-04-04",
		},
		{
			name:     "non-date value rejected",
			html:     `<script>var m = {"addedOn":"recently"};</script>`,
			wantDate: "",
		},
		{
			name: "depth bound stops runaway nesting",
			html: `<script>var m = {"a":{"b":{"c":{"d":{"e":{"f":{"g":{"addedOn":"2025-01-01"}}}}}}}};</script>`,
			// addedOn sits at depth 7, beyond the search bound.
			wantDate: "",
		},
		{
			name:     "json-ld scripts excluded from this tier",
			html:     `<script type="application/ld+json">{"addedOn":"2025-03-03"}</script>`,
			wantDate: "",
		},
		{
			name:     "array of objects searched",
			html:     `<script>var m = {"listings":[{"id":1},{"datePublished":"2025-02-10"}]};</script>`,
			wantDate: "2025-02-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractEmbeddedModelDate(docFromHTML(t, "<html><body>"+tt.html+"</body></html>"))
			if result.Date != tt.wantDate {
				t.Errorf("date = %q, want %q", result.Date, tt.wantDate)
			}
			if tt.wantDate != "" && result.Source != SourceJSONModel {
				t.Errorf("source = %q, want jsonModel", result.Source)
			}
		})
	}
}

func TestScanBalancedObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		start int
		want  string
		ok    bool
	}{
		{"flat", `{"a":1}`, 0, `{"a":1}`, true},
		{"nested", `{"a":{"b":{"c":3}}}`, 0, `{"a":{"b":{"c":3}}}`, true},
		{"brace inside string", `{"a":"}{"} trailing`, 0, `{"a":"}{"}`, true},
		{"escaped quote in string", `{"a":"say \"hi\" {now}"}`, 0, `{"a":"say \"hi\" {now}"}`, true},
		{"unterminated", `{"a":1`, 0, "", false},
		{"not an open brace", `x{"a":1}`, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scanBalancedObject(tt.input, tt.start)
			if ok != tt.ok || got != tt.want {
				t.Errorf("scanBalancedObject(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}
