package ai

import (
	"reflect"
	"testing"
)

func TestParseAnalysisResponse(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want ListingAnalysis
	}{
		{
			name: "clean json",
			resp: `{"summary":"A terraced house.","risk_flags":["short lease"],"condition":"dated"}`,
			want: ListingAnalysis{Summary: "A terraced house.", RiskFlags: []string{"short lease"}, Condition: "dated"},
		},
		{
			name: "markdown fenced",
			resp: "```json\n{\"summary\":\"Flat.\",\"risk_flags\":[],\"condition\":\"good\"}\n```",
			want: ListingAnalysis{Summary: "Flat.", RiskFlags: []string{}, Condition: "good"},
		},
		{
			name: "chatter around the object",
			resp: `Sure! Here is the analysis: {"summary":"Bungalow.","risk_flags":["auction"],"condition":"project"} Hope that helps.`,
			want: ListingAnalysis{Summary: "Bungalow.", RiskFlags: []string{"auction"}, Condition: "project"},
		},
		{
			name: "hallucinated flag dropped, case-insensitive kept",
			resp: `{"summary":"House.","risk_flags":["Flood Risk","haunted"],"condition":"ok-ish"}`,
			want: ListingAnalysis{Summary: "House.", RiskFlags: []string{"flood risk"}, Condition: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysisResponse(tt.resp)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseAnalysisResponse_NotJSON(t *testing.T) {
	if _, err := parseAnalysisResponse("no object here"); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestFilterValid(t *testing.T) {
	got := filterValid([]string{"Garden", "garage", "Helipad"}, Tags)
	want := []string{"Garden", "Garage"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterValid = %v, want %v", got, want)
	}
}
