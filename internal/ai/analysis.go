package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// ListingAnalysis is the advisory LLM output for one listing. It is stored
// alongside the report but never feeds into scoring.
type ListingAnalysis struct {
	Summary   string   `json:"summary"`
	RiskFlags []string `json:"risk_flags"`
	Condition string   `json:"condition"` // "good", "dated", "project", "unknown"
}

// knownRiskFlags is the closed set the model may pick from; anything else
// it returns is dropped.
var knownRiskFlags = []string{
	"short lease",
	"auction",
	"cash buyers only",
	"structural issues",
	"japanese knotweed",
	"flood risk",
	"retirement restriction",
	"shared ownership",
	"non-standard construction",
	"tenanted",
}

// AnalyzeListing asks the LLM for a neutral summary and risk flags drawn
// from the listing description. JSON mode is tried first; a text-mode
// retry with balanced-object extraction covers models that ignore it.
func AnalyzeListing(ctx context.Context, client *OllamaClient, address, price, description string) (*ListingAnalysis, error) {
	prompt := fmt.Sprintf(`You are an expert UK property analyst. Analyse the listing below.

ADDRESS: %s
ASKING PRICE: %s
DESCRIPTION:
%s

Instructions:
1. Write a neutral 2-3 sentence summary of the property. No marketing language.
2. List risk flags ONLY from this exact set, when the text supports them: %s.
3. Judge overall condition as one of "good", "dated", "project", "unknown".

Return ONLY a JSON object:
{
  "summary": "string",
  "risk_flags": ["string"],
  "condition": "good" | "dated" | "project" | "unknown"
}`, address, price, description, strings.Join(knownRiskFlags, ", "))

	resp, err := client.GenerateCompletion(ctx, prompt, true)
	if err == nil {
		if analysis, parseErr := parseAnalysisResponse(resp); parseErr == nil {
			return analysis, nil
		} else {
			log.Printf("[ai] JSON mode failed parsing: %v. Retrying with text mode...", parseErr)
		}
	} else {
		log.Printf("[ai] JSON mode generation failed: %v. Retrying with text mode...", err)
	}

	resp, err = client.GenerateCompletion(ctx, prompt, false)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysisResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON after retry: %w (response: %s)", err, resp)
	}
	return analysis, nil
}

func parseAnalysisResponse(resp string) (*ListingAnalysis, error) {
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if jsonStr, ok := extractFirstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}

	var analysis ListingAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, err
	}

	analysis.RiskFlags = filterValid(analysis.RiskFlags, knownRiskFlags)
	switch strings.ToLower(strings.TrimSpace(analysis.Condition)) {
	case "good", "dated", "project":
		analysis.Condition = strings.ToLower(strings.TrimSpace(analysis.Condition))
	default:
		analysis.Condition = "unknown"
	}
	return &analysis, nil
}

// extractFirstJSONObject finds the first outermost balanced {...}.
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
