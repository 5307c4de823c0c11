package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"imoscraper/pkg/config"
)

// testCrawlConfig returns a CrawlConfig with fast retry delays for testing.
func testCrawlConfig() *config.CrawlConfig {
	return &config.CrawlConfig{
		PageSize:       72,
		RetryDelay:     10 * time.Millisecond,
		UserAgent:      "test-agent",
		AcceptLanguage: "pt-PT,pt;q=0.9",
		Referer:        "https://www.imovirtual.com/",
	}
}

// testLogger returns a logger that discards output.
func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
		if statusCodes[idx] == http.StatusOK {
			io.WriteString(w, body)
		}
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestBuildPageURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		page int
		want string
	}{
		{"no query string", "https://example.com/search", 1, "https://example.com/search?limit=72&page=1"},
		{"existing query string", "https://example.com/search?order=asc", 3, "https://example.com/search?order=asc&limit=72&page=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPageURL(tt.base, 72, tt.page); got != tt.want {
				t.Errorf("BuildPageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchPage_SuccessCarriesFixedHeaders(t *testing.T) {
	var gotUA, gotLang, gotReferer, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotReferer = r.Header.Get("Referer")
		gotQuery = r.URL.RawQuery
		io.WriteString(w, "<html></html>")
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(server.Client(), testCrawlConfig(), testLogger())
	res, err := fetcher.FetchPage(context.Background(), server.URL+"/search", 2)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if res.NotFound {
		t.Fatal("expected a body, got NotFound")
	}
	if string(res.Body) != "<html></html>" {
		t.Errorf("unexpected body: %q", res.Body)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotLang != "pt-PT,pt;q=0.9" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
	if gotReferer != "https://www.imovirtual.com/" {
		t.Errorf("Referer = %q", gotReferer)
	}
	if gotQuery != "limit=72&page=2" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestFetchPage_NotFoundIsEndSignal(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusNotFound}, "")

	fetcher := NewFetcher(server.Client(), testCrawlConfig(), testLogger())
	res, err := fetcher.FetchPage(context.Background(), server.URL, 7)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !res.NotFound {
		t.Fatal("expected NotFound signal")
	}
	if attempts.Load() != 1 {
		t.Errorf("404 must not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchPage_ServerErrorRetriedUntilSuccess(t *testing.T) {
	// 500 → 500 → 200 (succeeds on 3rd attempt)
	server, attempts := mockServer(t, []int{500, 500, 200}, "ok")

	fetcher := NewFetcher(server.Client(), testCrawlConfig(), testLogger())
	res, err := fetcher.FetchPage(context.Background(), server.URL, 1)

	if err != nil {
		t.Fatalf("expected no error after retries, got: %v", err)
	}
	if string(res.Body) != "ok" {
		t.Errorf("unexpected body: %q", res.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchPage_ClientErrorAlsoRetried(t *testing.T) {
	// 403 is transient here too: the policy is "never give up on a page".
	server, attempts := mockServer(t, []int{403, 200}, "ok")

	fetcher := NewFetcher(server.Client(), testCrawlConfig(), testLogger())
	res, err := fetcher.FetchPage(context.Background(), server.URL, 1)

	if err != nil {
		t.Fatalf("expected no error after retry, got: %v", err)
	}
	if res.NotFound {
		t.Fatal("unexpected NotFound")
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetchPage_CancelDuringRetrySleep(t *testing.T) {
	server, _ := mockServer(t, []int{500}, "")

	cfg := testCrawlConfig()
	cfg.RetryDelay = 10 * time.Second // sleep must be interrupted, not served out

	fetcher := NewFetcher(server.Client(), cfg, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := fetcher.FetchPage(ctx, server.URL, 1)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, retry sleep was not interrupted", elapsed)
	}
}
