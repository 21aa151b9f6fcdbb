package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/util"
)

const fetchAttempts = 3

// fetchSleepFunc is swapped out by tests
var fetchSleepFunc = time.Sleep

// ErrDisallowed is returned for URLs the host's robots.txt excludes
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher downloads policy documents published over HTTP
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil ignores robots.txt
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, httpProxy, httpsProxy string) *Fetcher {
	client := util.NewHTTPClient(timeout, httpProxy, httpsProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}
	return &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
	}
}

// WithRobots makes the fetcher honour the host's robots.txt
func (f *Fetcher) WithRobots() *Fetcher {
	f.robots = util.NewRobotsChecker(f.httpClient, f.userAgent)
	return f
}

// FetchResult contains the fetched body and metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	Name        string
	FinalURL    string
}

// Fetch retrieves a document from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain,text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	// One byte past the limit tells a truncated body apart from an exact fit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("read body: document exceeds %d bytes", f.maxBytes)
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Name:        extractSubject(finalURL),
		FinalURL:    finalURL,
	}, nil
}

// FetchWithRetry retries transient failures with linear backoff, never
// faster than the crawl delay robots.txt asks for
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var minBackoff time.Duration
	if f.robots != nil {
		allowed, delay := f.robots.Allowed(ctx, rawURL)
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		minBackoff = delay
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == fetchAttempts {
			break
		}
		fetchSleepFunc(max(time.Duration(attempt)*time.Second, minBackoff))
	}
	return nil, lastErr
}

// isRetryableFetchError reports server errors, rate limiting and transport
// failures. Client errors and cancellations are final.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// extractSubject derives a document name from the URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

// isURL reports whether source should be fetched rather than read from disk
func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
