// Package crawler fetches source pages and maps posts to their source URLs.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"blogmigrate/internal/config"
)

// AttemptResult records the result of one fetch attempt.
type AttemptResult struct {
	Timestamp  time.Time
	Error      string
	Attempt    int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// FetchResult is a fetched page with its attempt history.
type FetchResult struct {
	URL      string
	Body     string
	Attempts []AttemptResult
	Duration time.Duration
}

// Scraper fetches pages with config-driven retry logic.
type Scraper struct {
	client       *http.Client
	retryPolicy  config.RetryPolicy
	userAgent    string
	blockMarkers []string
	bufferSizeKb int
}

// NewScraper creates a scraper from the fetch configuration.
func NewScraper(cfg config.FetchConfig) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Retry.GetTimeout(),
		},
		retryPolicy:  cfg.Retry,
		userAgent:    cfg.UserAgent,
		blockMarkers: cfg.BlockMarkers,
		bufferSizeKb: cfg.BufferSizeKb,
	}
}

// WithHTTPClient replaces the HTTP client.
func (s *Scraper) WithHTTPClient(c *http.Client) *Scraper {
	s.client = c

	return s
}

// Fetch returns the body of url. Plain http URLs are upgraded to https.
// Transport errors and retryable statuses are retried with backoff; a page
// carrying a block marker fails with ErrBlocked and is not retried.
func (s *Scraper) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	url = UpgradeScheme(url)
	res := &FetchResult{URL: url}

	var lastErr *FetchError

	for attempt := 1; attempt <= s.retryPolicy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, s.retryPolicy.GetRetryDelay(attempt)); err != nil {
				return res, &FetchError{Kind: ErrTimeout, URL: url, Err: err, Attempts: attempt - 1}
			}
		}

		start := time.Now()
		body, status, err := s.get(ctx, url)
		elapsed := time.Since(start)
		res.Duration += elapsed

		rec := AttemptResult{
			Timestamp:  start,
			Attempt:    attempt,
			Duration:   elapsed,
			StatusCode: status,
		}

		if err == nil {
			err = s.checkBlocked(url, body)
		}

		if err != nil {
			rec.Error = err.Error()
			res.Attempts = append(res.Attempts, rec)

			var fe *FetchError
			if !errors.As(err, &fe) {
				fe = &FetchError{Kind: ErrRequest, URL: url, Err: err}
			}

			fe.Attempts = attempt
			lastErr = fe

			if !retryable(fe) || ctx.Err() != nil {
				break
			}

			continue
		}

		rec.Success = true
		res.Attempts = append(res.Attempts, rec)
		res.Body = body

		return res, nil
	}

	if lastErr == nil {
		return res, &FetchError{Kind: ErrRequest, URL: url}
	}

	return res, lastErr
}

func (s *Scraper) get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Set user agent to avoid being blocked
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", 0, &FetchError{Kind: ErrTimeout, URL: url, Err: err}
		}

		return "", 0, &FetchError{Kind: ErrRequest, URL: url, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", resp.StatusCode, &FetchError{Kind: ErrNotFound, URL: url, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return "", resp.StatusCode, &FetchError{Kind: ErrUnexpectedStatusCode, URL: url, StatusCode: resp.StatusCode}
	}

	// bufferSizeKb is in KB, convert to bytes
	limit := int64(s.bufferSizeKb) * 1024

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), resp.StatusCode, nil
}

func (s *Scraper) checkBlocked(url, body string) error {
	lower := strings.ToLower(body)

	for _, marker := range s.blockMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return &FetchError{Kind: ErrBlocked, URL: url, Err: fmt.Errorf("marker %q", marker)}
		}
	}

	return nil
}

// UpgradeScheme rewrites http:// URLs to https://.
func UpgradeScheme(url string) string {
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		return "https://" + rest
	}

	return url
}

func retryable(fe *FetchError) bool {
	switch {
	case errors.Is(fe.Kind, ErrTimeout), errors.Is(fe.Kind, ErrRequest):
		return true
	case errors.Is(fe.Kind, ErrUnexpectedStatusCode):
		return isRetryableStatus(fe.StatusCode)
	}

	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}
