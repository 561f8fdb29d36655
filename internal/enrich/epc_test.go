package enrich

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func epcTestClient(srv *httptest.Server) *EPCClient {
	return NewEPCClient(EPCConfig{
		BaseURL: srv.URL,
		Email:   "test@example.com",
		APIKey:  "key",
	}, NewCache(time.Hour))
}

func TestEPCLookup_PrefersAddressTokenMatch(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		io.WriteString(w, `{"rows":[
			{"address":"10 Elm Grove","current-energy-rating":"D","potential-energy-rating":"B","current-energy-efficiency":"60","inspection-date":"2022-01-05"},
			{"address":"45 Elm Grove","current-energy-rating":"C","potential-energy-rating":"B","current-energy-efficiency":"72","inspection-date":"2023-04-18"}
		]}`)
	}))
	defer srv.Close()

	rating, err := epcTestClient(srv).Lookup(context.Background(), "BS6", "45 Elm Grove, Bristol")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rating == nil || rating.CurrentRating != "C" || rating.CurrentScore != 72 {
		t.Errorf("rating = %+v, want the 45 Elm Grove certificate", rating)
	}
	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
}

func TestEPCLookup_CachesEmptyRegisterResult(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := epcTestClient(srv)
	for i := 0; i < 3; i++ {
		rating, err := client.Lookup(context.Background(), "ZZ1", "1 Nowhere Lane")
		if err != nil {
			t.Fatalf("Lookup %d: %v", i, err)
		}
		if rating != nil {
			t.Fatalf("Lookup %d: rating = %+v, want nil", i, rating)
		}
	}

	if hits != 1 {
		t.Errorf("empty result should be cached, got %d requests", hits)
	}
}

func TestEPCLookup_CachesHit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		io.WriteString(w, `{"rows":[{"address":"7 High St","current-energy-rating":"B","potential-energy-rating":"A","current-energy-efficiency":"84"}]}`)
	}))
	defer srv.Close()

	client := epcTestClient(srv)
	first, err := client.Lookup(context.Background(), "SW11", "7 High St")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	second, err := client.Lookup(context.Background(), "SW11", "7 High St")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
	if first != second {
		t.Error("cached lookup should return the same rating")
	}
}
