package scrape

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// dateFieldPriority is the field order within a JSON-LD object. Earlier
// fields win even when a later field also carries a value.
var dateFieldPriority = []string{"datePosted", "datePublished", "dateCreated"}

// extractJSONLDDate scans all application/ld+json script blocks for a posted
// date. Malformed blocks are skipped; scanning continues with the next block.
func extractJSONLDDate(doc *goquery.Document) ExtractionResult {
	result := ExtractionResult{Source: SourceNone}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			// This block has no answer; keep scanning.
			return true
		}

		for _, obj := range jsonLDObjects(parsed) {
			if date, snippet, ok := jsonLDDateField(obj); ok {
				result = ExtractionResult{Date: date, Source: SourceJSONLD, RawSnippet: snippet}
				return false
			}
		}
		return true
	})

	return result
}

// jsonLDObjects flattens a parsed JSON-LD payload into candidate objects:
// the top-level object(s) plus any nested @graph entries.
func jsonLDObjects(parsed interface{}) []map[string]interface{} {
	var objects []map[string]interface{}

	collect := func(v interface{}) {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return
		}
		objects = append(objects, obj)
		if graph, ok := obj["@graph"].([]interface{}); ok {
			for _, entry := range graph {
				if entryObj, ok := entry.(map[string]interface{}); ok {
					objects = append(objects, entryObj)
				}
			}
		}
	}

	switch v := parsed.(type) {
	case []interface{}:
		for _, item := range v {
			collect(item)
		}
	default:
		collect(v)
	}

	return objects
}

func jsonLDDateField(obj map[string]interface{}) (date, snippet string, ok bool) {
	for _, field := range dateFieldPriority {
		raw, present := obj[field].(string)
		if !present {
			continue
		}
		if normalized, valid := normalizeDate(raw); valid {
			return normalized, field + ": " + raw, true
		}
	}
	return "", "", false
}
