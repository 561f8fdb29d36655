package scrape

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// addedDateKeys are matched case-insensitively as substrings of candidate
// object keys, in this order.
var addedDateKeys = []string{
	"addedon",
	"firstlisteddate",
	"dateposted",
	"datepublished",
	"listeddate",
	"addeddate",
}

// assignmentPattern captures the start of a well-known JS model assignment:
// window.X = {, var X = {, const X = {, let X = {.
var assignmentPattern = regexp.MustCompile(`(?:window\.(\w+)|(?:var|const|let)\s+(\w+))\s*=\s*\{`)

// maxKeySearchDepth bounds the recursive key search in candidate objects.
const maxKeySearchDepth = 5

// extractEmbeddedModelDate scans inline scripts (excluding JSON-LD blocks)
// for an application state object carrying a listing added date. Assignment
// patterns are tried first; failing that, the largest balanced objects found
// by a brace-counting scan are parsed as candidates.
func extractEmbeddedModelDate(doc *goquery.Document) ExtractionResult {
	result := ExtractionResult{Source: SourceNone}

	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if typ, _ := sel.Attr("type"); strings.EqualFold(typ, "application/ld+json") {
			return true
		}
		body := sel.Text()
		if !strings.Contains(body, "{") {
			return true
		}

		for _, candidate := range scriptObjectCandidates(body) {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
				continue
			}
			if date, snippet, ok := findAddedDateKey(parsed, 0); ok {
				result = ExtractionResult{Date: date, Source: SourceJSONModel, RawSnippet: snippet}
				return false
			}
		}
		return true
	})

	return result
}

// scriptObjectCandidates extracts JSON object literals from a script body.
// Assignment-pattern matches come first; the generic balanced-object scan is
// the fallback, largest objects first.
func scriptObjectCandidates(body string) []string {
	var candidates []string

	for _, loc := range assignmentPattern.FindAllStringIndex(body, -1) {
		open := strings.Index(body[loc[0]:loc[1]], "{")
		if open < 0 {
			continue
		}
		if obj, ok := scanBalancedObject(body, loc[0]+open); ok {
			candidates = append(candidates, obj)
		}
	}
	if len(candidates) > 0 {
		return candidates
	}

	candidates = scanAllObjects(body)
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	return candidates
}

// scanBalancedObject reads a balanced {...} substring starting at the given
// offset, tracking nesting depth and string escape state.
func scanBalancedObject(s string, start int) (string, bool) {
	if start >= len(s) || s[start] != '{' {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// scanAllObjects returns every top-level balanced object literal in a script
// body.
func scanAllObjects(s string) []string {
	var objects []string
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			break
		}
		obj, ok := scanBalancedObject(s, i+open)
		if !ok {
			i += open + 1
			continue
		}
		objects = append(objects, obj)
		i += open + len(obj)
	}
	return objects
}

// findAddedDateKey searches an object tree for a date-valued key whose name
// contains one of the known added-date key fragments. Depth-bounded.
func findAddedDateKey(obj map[string]interface{}, depth int) (date, snippet string, ok bool) {
	if depth > maxKeySearchDepth {
		return "", "", false
	}

	// Sorted keys keep the walk deterministic across runs.
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, fragment := range addedDateKeys {
		for _, key := range keys {
			if !strings.Contains(strings.ToLower(key), fragment) {
				continue
			}
			str, isStr := obj[key].(string)
			if !isStr || !looksLikeDate(str) {
				continue
			}
			if normalized, valid := normalizeDate(str); valid {
				return normalized, key + ": " + str, true
			}
		}
	}

	// Recurse into nested objects and arrays of objects.
	for _, key := range keys {
		switch v := obj[key].(type) {
		case map[string]interface{}:
			if date, snippet, ok := findAddedDateKey(v, depth+1); ok {
				return date, snippet, true
			}
		case []interface{}:
			for _, item := range v {
				if nested, isObj := item.(map[string]interface{}); isObj {
					if date, snippet, ok := findAddedDateKey(nested, depth+1); ok {
						return date, snippet, true
					}
				}
			}
		}
	}

	return "", "", false
}
