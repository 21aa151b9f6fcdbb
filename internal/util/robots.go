package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker decides whether a policy document URL may be fetched.
// robots.txt is loaded once per host; a host whose robots.txt cannot be
// loaded allows every path.
type RobotsChecker struct {
	mu     sync.RWMutex
	hosts  map[string]*robotstxt.RobotsData
	client *http.Client
	agent  string
}

// NewRobotsChecker creates a checker that fetches robots.txt with client
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		hosts:  make(map[string]*robotstxt.RobotsData),
		client: client,
		agent:  userAgent,
	}
}

// Allowed reports whether rawURL may be fetched and the crawl delay the
// host asks for
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, time.Duration) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true, 0
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}

	agent := ProductToken(r.agent)
	data := r.robots(ctx, parsed.Scheme, parsed.Host)
	allowed := data.TestAgent(path, agent)

	var delay time.Duration
	if group := data.FindGroup(agent); group != nil {
		delay = group.CrawlDelay
	}
	return allowed, delay
}

func (r *RobotsChecker) robots(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	r.mu.RLock()
	data, ok := r.hosts[host]
	r.mu.RUnlock()
	if ok {
		return data
	}

	data, err := r.load(ctx, fmt.Sprintf("%s://%s/robots.txt", scheme, host))
	if err != nil {
		// Unreachable or unparseable robots.txt allows everything. Not cached
		// so a transient failure does not stick.
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
		return data
	}

	r.mu.Lock()
	r.hosts[host] = data
	r.mu.Unlock()
	return data
}

func (r *RobotsChecker) load(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// FromResponse maps 4xx to allow-all and 5xx to disallow-all
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// ProductToken is the user agent name robots.txt groups are matched against:
// "policyengine/0.1 (+https://...)" becomes "policyengine"
func ProductToken(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}
