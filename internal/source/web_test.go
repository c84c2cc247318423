package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veracitylabs/veracity/internal/cache"
	"github.com/veracitylabs/veracity/internal/model"
)

const landmarkPage = `<!DOCTYPE html>
<html>
<head><script>ignore("this");</script></head>
<body>
  <p>The Eiffel Tower stands in Paris beside the Seine.</p>
  <p>Construction of the tower finished during 1889.</p>
  <style>p { color: red }</style>
</body>
</html>`

func landmarkServer(t *testing.T, robots string, pageHits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, robots)
	})
	mux.HandleFunc("/landmarks", func(w http.ResponseWriter, _ *http.Request) {
		if pageHits != nil {
			pageHits.Add(1)
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, landmarkPage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWebSource_ExtractsVisibleSentences(t *testing.T) {
	server := landmarkServer(t, "User-agent: *\nAllow: /\n", nil)

	src := NewWebSource("web", WebSourceOptions{
		URLs:      []string{server.URL + "/landmarks"},
		UserAgent: "veracity-test",
		Authority: NewAuthorityClassifier(&model.AuthorityConfig{
			DomainMap: map[string]string{"127.0.0.1": "secondary"},
		}),
	})

	evidence, err := src.Retrieve(context.Background(), "The Eiffel Tower stands in Paris")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(evidence) == 0 {
		t.Fatal("Expected evidence from the reference page")
	}
	if evidence[0].Excerpt != "The Eiffel Tower stands in Paris beside the Seine." {
		t.Errorf("Unexpected best excerpt: %q", evidence[0].Excerpt)
	}
	if evidence[0].Reliability != 0.75 {
		t.Errorf("Expected secondary-tier reliability 0.75, got %v", evidence[0].Reliability)
	}
	for _, ev := range evidence {
		if ev.Excerpt == `ignore("this");` {
			t.Error("Script content must not surface as evidence")
		}
	}
}

func TestWebSource_RespectsRobotsDisallow(t *testing.T) {
	server := landmarkServer(t, "User-agent: *\nDisallow: /landmarks\n", nil)

	src := NewWebSource("web", WebSourceOptions{
		URLs:      []string{server.URL + "/landmarks"},
		UserAgent: "veracity-test",
	})

	if _, err := src.Retrieve(context.Background(), "The Eiffel Tower stands in Paris"); err == nil {
		t.Fatal("Expected error when the only reference page is disallowed")
	}
}

func TestWebSource_CachesPageText(t *testing.T) {
	var hits atomic.Int64
	server := landmarkServer(t, "User-agent: *\nAllow: /\n", &hits)

	src := NewWebSource("web", WebSourceOptions{
		URLs:      []string{server.URL + "/landmarks"},
		UserAgent: "veracity-test",
		Cache:     cache.NewMemoryCache(time.Minute, time.Minute),
		CacheTTL:  time.Minute,
	})

	for i := 0; i < 3; i++ {
		if _, err := src.Retrieve(context.Background(), "The Eiffel Tower stands in Paris"); err != nil {
			t.Fatalf("Retrieve %d failed: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Expected a single page fetch, got %d", got)
	}
}

func TestWebSource_AllPagesFailing(t *testing.T) {
	server := landmarkServer(t, "User-agent: *\nAllow: /\n", nil)

	src := NewWebSource("web", WebSourceOptions{
		URLs:      []string{server.URL + "/missing"},
		UserAgent: "veracity-test",
	})

	if _, err := src.Retrieve(context.Background(), "The Eiffel Tower stands in Paris"); err == nil {
		t.Fatal("Expected error when every reference page fails")
	}
}

func TestWebSource_NoURLs(t *testing.T) {
	src := NewWebSource("web", WebSourceOptions{UserAgent: "veracity-test"})
	evidence, err := src.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if evidence != nil {
		t.Errorf("Expected nil evidence, got %v", evidence)
	}
}
