package db

import (
	"strings"
	"testing"
)

func TestBuildListWhere_NoFilters(t *testing.T) {
	where, args, argIdx := buildListWhere(ListParams{})
	if where != "WHERE 1=1" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 0 || argIdx != 1 {
		t.Errorf("args = %v, argIdx = %d", args, argIdx)
	}
}

func TestBuildListWhere_AllFilters(t *testing.T) {
	where, args, argIdx := buildListWhere(ListParams{
		Query:        "garden flat",
		Outcode:      " sw11 ",
		PropertyType: "Flat",
		MinScore:     40,
		MaxScore:     90,
		MinPrice:     100000,
		MaxPrice:     500000,
	})

	mustContain := []string{
		"search_vector @@ plainto_tsquery('english', $1)",
		"outcode = $2",
		"property_type ILIKE $3",
		"overall_score >= $4",
		"overall_score <= $5",
		"price >= $6",
		"price <= $7",
	}
	for _, token := range mustContain {
		if !strings.Contains(where, token) {
			t.Fatalf("where missing token %q: %s", token, where)
		}
	}

	if len(args) != 7 || argIdx != 8 {
		t.Fatalf("args = %v, argIdx = %d", args, argIdx)
	}
	if args[1] != "SW11" {
		t.Errorf("outcode arg should be trimmed and uppercased, got %v", args[1])
	}
}
