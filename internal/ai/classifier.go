package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tags a listing may be classified under. The model must pick from this
// exact list.
var Tags = []string{
	"Garden",
	"Off-street Parking",
	"Garage",
	"Period Features",
	"New Build",
	"Recently Renovated",
	"Chain Free",
	"Investment / BTL",
	"Family Home",
	"First-time Buyer",
	"Needs Modernisation",
	"Rural",
	"Waterfront",
}

type ClassificationResult struct {
	Tags []string `json:"tags"`
}

// ClassifyListing tags a listing from its address and description against
// the fixed tag list.
func ClassifyListing(ctx context.Context, client *OllamaClient, address, description string) (*ClassificationResult, error) {
	tagList := strings.Join(Tags, ", ")

	prompt := fmt.Sprintf(`You are an expert UK property classifier. Tag the listing below.

ADDRESS: %s
DESCRIPTION: %s

Select the most relevant tags from the following EXACT list. Do not invent new tags.

AVAILABLE TAGS: %s

Return a JSON object with this format:
{
  "tags": ["Tag1", "Tag2"]
}

Rules:
1. Select only tags the description strongly supports.
2. If the listing mentions "no onward chain", tag "Chain Free".
3. If no tags apply, return an empty array.
4. RESPOND ONLY WITH JSON.`, address, description, tagList)

	resp, err := client.GenerateCompletion(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification json: %w. Response: %s", err, resp)
	}

	result.Tags = filterValid(result.Tags, Tags)
	return &result, nil
}

// filterValid drops hallucinated tags, keeping the canonical spelling for
// case-insensitive matches.
func filterValid(tags []string, allowed []string) []string {
	valid := make([]string, 0)
	allowedMap := make(map[string]bool)
	for _, a := range allowed {
		allowedMap[a] = true
	}

	for _, t := range tags {
		if allowedMap[t] {
			valid = append(valid, t)
			continue
		}
		for a := range allowedMap {
			if strings.EqualFold(a, t) {
				valid = append(valid, a)
				break
			}
		}
	}
	return valid
}
