package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blogmigrate/internal/config"
	"blogmigrate/internal/models"
)

func testFetchConfig() config.FetchConfig {
	cfg := config.Default().Fetch
	cfg.Retry = config.RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    1,
		MaxDelayMs:        5,
		BackoffMultiplier: 2.0,
		TimeoutSec:        5,
	}

	return cfg
}

func newTestScraper(srv *httptest.Server) *Scraper {
	return NewScraper(testFetchConfig()).WithHTTPClient(srv.Client())
}

func TestScraper_Fetch(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request without User-Agent")
		}

		_, _ = w.Write([]byte(`<html><div id="js_content">正文</div></html>`))
	}))
	defer srv.Close()

	res, err := newTestScraper(srv).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if res.Body == "" || len(res.Attempts) != 1 || !res.Attempts[0].Success {
		t.Errorf("Fetch() = %+v", res)
	}
}

func TestScraper_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res, err := newTestScraper(srv).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(res.Attempts) != 3 || res.Body != "ok" {
		t.Errorf("attempts = %d, body = %q", len(res.Attempts), res.Body)
	}
}

func TestScraper_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  error
		wantCalls int32
	}{
		{"not found is final", http.StatusNotFound, "", ErrNotFound, 1},
		{"forbidden is final", http.StatusForbidden, "", ErrUnexpectedStatusCode, 1},
		{"rate limit exhausts retries", http.StatusTooManyRequests, "", ErrUnexpectedStatusCode, 3},
		{"block marker", http.StatusOK, "<html>请完成安全验证</html>", ErrBlocked, 1},
		{"captcha marker is case-insensitive", http.StatusOK, "<div class='CAPTCHA'></div>", ErrBlocked, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32

			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestScraper(srv).Fetch(context.Background(), srv.URL)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.wantKind)
			}

			var fe *FetchError
			if !errors.As(err, &fe) || fe.URL != srv.URL {
				t.Errorf("Fetch() error = %#v, want *FetchError for %s", err, srv.URL)
			}

			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server saw %d calls, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestScraper_Timeout(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 50 * time.Millisecond

	cfg := testFetchConfig()
	cfg.Retry.MaxAttempts = 1

	_, err := NewScraper(cfg).WithHTTPClient(client).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Fetch() error = %v, want ErrTimeout", err)
	}
}

func TestUpgradeScheme(t *testing.T) {
	tests := map[string]string{
		"http://mp.weixin.qq.com/s/a":  "https://mp.weixin.qq.com/s/a",
		"https://mp.weixin.qq.com/s/a": "https://mp.weixin.qq.com/s/a",
		"mp.weixin.qq.com":             "mp.weixin.qq.com",
	}

	for in, want := range tests {
		if got := UpgradeScheme(in); got != want {
			t.Errorf("UpgradeScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

type memoryCache struct {
	pages map[string]string
}

func (m *memoryCache) Get(url string) (string, bool, error) {
	body, ok := m.pages[url]

	return body, ok, nil
}

func (m *memoryCache) Put(url, body string) error {
	m.pages[url] = body

	return nil
}

func TestClient_UsesCache(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("page"))
	}))
	defer srv.Close()

	cache := &memoryCache{pages: map[string]string{}}
	client := NewClient(newTestScraper(srv), cache, nil)

	first, err := client.Get(context.Background(), srv.URL)
	if err != nil || first.FromCache {
		t.Fatalf("first Get() = %+v, %v", first, err)
	}

	second, err := client.Get(context.Background(), srv.URL)
	if err != nil || !second.FromCache || second.HTML != "page" {
		t.Fatalf("second Get() = %+v, %v", second, err)
	}

	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestArticleIndex_Lookup(t *testing.T) {
	idx := NewArticleIndex([]models.Article{
		{Title: "春天的院子", URL: "http://mp.weixin.qq.com/s/spring"},
		{Title: "写给四岁儿子的信：你好，阿勋", URL: "https://mp.weixin.qq.com/s/letter"},
		{Title: "没有链接", URL: ""},
	})

	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}

	tests := []struct {
		title   string
		wantURL string
		wantErr bool
	}{
		{"春天的院子", "http://mp.weixin.qq.com/s/spring", false},
		{"写给四岁儿子的信 你好阿勋", "https://mp.weixin.qq.com/s/letter", false},
		{"信：你好，阿勋", "https://mp.weixin.qq.com/s/letter", false},
		{"没有链接", "", true},
	}

	for _, tt := range tests {
		a, err := idx.Lookup(tt.title)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q) error = %v", tt.title, err)

			continue
		}

		if a.URL != tt.wantURL {
			t.Errorf("Lookup(%q) = %q, want %q", tt.title, a.URL, tt.wantURL)
		}
	}

	client := NewClient(nil, nil, idx)
	if got, _ := client.SourceURL("春天的院子"); got != "https://mp.weixin.qq.com/s/spring" {
		t.Errorf("SourceURL() = %q", got)
	}
}
