package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// testFetcher points the fetcher at an httptest server. The production
// transport refuses loopback addresses, so tests swap in the server's client.
func testFetcher(srv *httptest.Server) *HTTPFetcher {
	f := NewHTTPFetcher(FetchConfig{TimeoutSeconds: 5})
	f.client = srv.Client()
	return f
}

func TestFetch_RetriesOn429(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "listing body")
	}))
	defer srv.Close()

	doc, err := testFetcher(srv).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer doc.Body.Close()

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if doc.StatusCode != http.StatusOK {
		t.Errorf("status = %d", doc.StatusCode)
	}
	body, _ := io.ReadAll(doc.Body)
	if string(body) != "listing body" {
		t.Errorf("body = %q", body)
	}
	if doc.FetchedAt.IsZero() {
		t.Error("FetchedAt not stamped")
	}
}

func TestFetch_NoRetryOn404(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher(srv).Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should carry the status code: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("404 must not be retried, got %d attempts", got)
	}
}

func TestFetch_AttemptCapOn5xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testFetcher(srv).Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("error = %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestFetch_BrowserIdentity(t *testing.T) {
	var userAgent, acceptLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		acceptLanguage = r.Header.Get("Accept-Language")
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	doc, err := testFetcher(srv).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	doc.Body.Close()

	if !strings.Contains(userAgent, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q", userAgent)
	}
	if acceptLanguage != "en-GB,en;q=0.9" {
		t.Errorf("Accept-Language = %q", acceptLanguage)
	}
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(FetchConfig{})
	if f.config.TimeoutSeconds != 10 {
		t.Errorf("timeout = %d, want 10", f.config.TimeoutSeconds)
	}
	if f.config.MaxRetries != 3 {
		t.Errorf("retries = %d, want 3", f.config.MaxRetries)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{404, false},
		{403, false},
		{301, false},
	}
	for _, tt := range tests {
		if got := shouldRetry(nil, tt.status); got != tt.want {
			t.Errorf("shouldRetry(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
