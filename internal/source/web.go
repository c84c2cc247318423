package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/veracitylabs/veracity/internal/cache"
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/util"
	"github.com/veracitylabs/veracity/internal/worker"
)

// WebSource retrieves evidence from a configured set of reference pages.
// Fetches are rate limited per host and respect robots.txt; page text is
// cached so concurrent requests do not re-fetch the same reference.
type WebSource struct {
	id         string
	urls       []string
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	robots    *util.RobotsChecker
	limiter   *worker.Limiter
	authority *AuthorityClassifier
	cache     cache.Cache
	cacheTTL  time.Duration

	minMatch    float64
	maxExcerpts int
	logger      *slog.Logger
}

// WebSourceOptions configures a WebSource.
type WebSourceOptions struct {
	URLs         []string
	UserAgent    string
	FetchTimeout time.Duration
	MaxBodyBytes int64
	Limiter      *worker.Limiter
	Authority    *AuthorityClassifier
	Cache        cache.Cache
	CacheTTL     time.Duration
	MinRelevance float64
	MaxExcerpts  int
	Logger       *slog.Logger
}

// NewWebSource creates a web source over the configured reference URLs.
func NewWebSource(id string, opts WebSourceOptions) *WebSource {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2_000_000
	}
	if opts.MaxExcerpts <= 0 {
		opts.MaxExcerpts = 10
	}
	if opts.MinRelevance <= 0 {
		opts.MinRelevance = 0.2
	}
	if opts.Authority == nil {
		opts.Authority = NewAuthorityClassifier(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &WebSource{
		id:   id,
		urls: opts.URLs,
		httpClient: &http.Client{
			Timeout: opts.FetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:   opts.UserAgent,
		maxBytes:    opts.MaxBodyBytes,
		robots:      util.NewRobotsChecker(opts.UserAgent, opts.FetchTimeout),
		limiter:     opts.Limiter,
		authority:   opts.Authority,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		minMatch:    opts.MinRelevance,
		maxExcerpts: opts.MaxExcerpts,
		logger:      opts.Logger,
	}
}

// ID implements Source.
func (s *WebSource) ID() string { return s.id }

// Retrieve implements Source. Per-page failures are tolerated; the call
// errors only when every reference page fails.
func (s *WebSource) Retrieve(ctx context.Context, claim string) ([]model.Evidence, error) {
	if len(s.urls) == 0 {
		return nil, nil
	}

	type scored struct {
		evidence model.Evidence
		match    float64
	}

	var hits []scored
	failures := 0

	for _, pageURL := range s.urls {
		text, err := s.pageText(ctx, pageURL)
		if err != nil {
			failures++
			s.logger.Warn("reference page fetch failed", "url", pageURL, "error", err)
			continue
		}

		reliability := s.authority.Classify(pageURL).Reliability()
		for _, sentence := range util.SplitSentences(text) {
			match := util.Containment(claim, sentence)
			if match < s.minMatch {
				continue
			}
			hits = append(hits, scored{
				evidence: model.Evidence{
					SourceID:    s.id + "/" + pageURL,
					Reliability: reliability,
					Excerpt:     sentence,
					Relevance:   match,
				},
				match: match,
			})
		}
	}

	if failures == len(s.urls) {
		return nil, fmt.Errorf("%s: all %d reference pages failed", s.id, failures)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].match > hits[j].match })
	if len(hits) > s.maxExcerpts {
		hits = hits[:s.maxExcerpts]
	}

	evidence := make([]model.Evidence, 0, len(hits))
	for _, hit := range hits {
		evidence = append(evidence, hit.evidence)
	}
	return evidence, nil
}

// pageText fetches a reference page and extracts its visible text.
func (s *WebSource) pageText(ctx context.Context, pageURL string) (string, error) {
	if s.cache != nil {
		if data, found := s.cache.Get(cache.EvidenceKey(s.id, pageURL)); found {
			return string(data), nil
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, pageURL); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	allowed, crawlDelay, err := s.robots.CanFetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("disallowed by robots.txt")
	}
	if crawlDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(crawlDelay):
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text, err := visibleText(string(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(cache.EvidenceKey(s.id, pageURL), []byte(text), s.cacheTTL)
	}

	return text, nil
}

// visibleText extracts text nodes from HTML, skipping scripts and styles.
func visibleText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return buf.String(), nil
}
