package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/metrics"
)

// searchResultCap is GitHub's hard limit on retrievable search results:
// anything past the first thousand is unreachable regardless of paging.
const searchResultCap = 1000

var errRetryableStatus = errors.New("retryable http status")

// GitHubConfig configures the GitHub search clients.
type GitHubConfig struct {
	BaseURL    string
	Token      string
	PerPage    int
	Timeout    time.Duration
	Retry      *RetryPolicy
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// githubClient issues authenticated JSON GETs with the capped retry policy.
type githubClient struct {
	baseURL string
	token   string
	perPage int
	http    *http.Client
	retry   *RetryPolicy
	logger  *zap.Logger
}

func newGitHubClient(cfg GitHubConfig) *githubClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = 100
	}
	if cfg.Retry == nil {
		cfg.Retry = NewRetryPolicy(0, 0, 0)
	}
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &githubClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		perPage: cfg.PerPage,
		http:    cfg.HTTPClient,
		retry:   cfg.Retry,
		logger:  cfg.Logger,
	}
}

// getJSON fetches rawURL and decodes the response into out, retrying
// secondary-rate-limit and server errors per the policy. A 404 is returned
// as-is so callers can treat it as a per-item skip.
func (c *githubClient) getJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = c.getJSONOnce(ctx, rawURL, out)
		if lastErr == nil {
			return nil
		}
		retryable := errors.Is(lastErr, errRetryableStatus)
		var netErr net.Error
		if errors.As(lastErr, &netErr) && netErr.Timeout() {
			retryable = true
		}
		if !retryable || !c.retry.ShouldRetry(lastErr, attempt) {
			return lastErr
		}
		wait := c.retry.Backoff(attempt)
		c.logger.Warn("provider request retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry wait: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// ErrNotFound marks a per-item miss (content gone between search and fetch).
var ErrNotFound = errors.New("not found")

func (c *githubClient) getJSONOnce(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "savethewebproject/googlrot (+github.com/saveweb)")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", rawURL, ErrNotFound)
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return fmt.Errorf("status %d: %w", resp.StatusCode, errRetryableStatus)
	default:
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *githubClient) searchURL(endpoint, query string, page int) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", strconv.Itoa(page))
	return c.baseURL + endpoint + "?" + q.Encode()
}

// CodeSearch streams file contents matching a code-search query.
type CodeSearch struct {
	client *githubClient
	logger *zap.Logger
}

// NewCodeSearch builds the code-search provider.
func NewCodeSearch(cfg GitHubConfig) *CodeSearch {
	c := newGitHubClient(cfg)
	return &CodeSearch{client: c, logger: c.logger}
}

type codeSearchPage struct {
	TotalCount int              `json:"total_count"`
	Items      []codeSearchItem `json:"items"`
}

type codeSearchItem struct {
	Path       string `json:"path"`
	URL        string `json:"url"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Search pages through code-search results, fetching each item's file
// content. Items whose content is gone or undecodable are logged and
// skipped; only provider-level failures end the stream with an error.
func (s *CodeSearch) Search(ctx context.Context, query string, yield func(Blob) bool) error {
	fetched := 0
	for page := 1; fetched < searchResultCap; page++ {
		var result codeSearchPage
		if err := s.client.getJSON(ctx, s.client.searchURL("/search/code", query, page), &result); err != nil {
			return fmt.Errorf("code search page %d: %w", page, err)
		}
		if len(result.Items) == 0 {
			return nil
		}
		for _, item := range result.Items {
			fetched++
			provenance := item.Repository.FullName + "/" + item.Path
			content, err := s.fetchContent(ctx, item.URL)
			if err != nil {
				if errors.Is(err, ErrNotFound) || errors.Is(err, errBadEncoding) {
					metrics.BlobScanned("skipped")
					s.logger.Warn("skipping blob", zap.String("provenance", provenance), zap.Error(err))
					continue
				}
				return fmt.Errorf("fetch content for %s: %w", provenance, err)
			}
			if !yield(Blob{Content: content, Provenance: provenance}) {
				return nil
			}
		}
		if len(result.Items) < s.client.perPage {
			return nil
		}
	}
	return nil
}

var errBadEncoding = errors.New("undecodable content")

func (s *CodeSearch) fetchContent(ctx context.Context, contentURL string) (string, error) {
	var resp contentResponse
	if err := s.client.getJSON(ctx, contentURL, &resp); err != nil {
		return "", err
	}
	if resp.Encoding != "base64" {
		return "", fmt.Errorf("encoding %q: %w", resp.Encoding, errBadEncoding)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		// GitHub wraps base64 at 60 columns; strip whitespace and retry
		// before giving up on the item.
		raw, err = base64.StdEncoding.DecodeString(stripWhitespace(resp.Content))
		if err != nil {
			return "", fmt.Errorf("base64: %w", errBadEncoding)
		}
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("not utf-8: %w", errBadEncoding)
	}
	return string(raw), nil
}

func stripWhitespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n', '\r', ' ', '\t':
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

// RepoSearch streams repository descriptions matching a repository-search
// query. Descriptions are small but dense with project links, which made
// this a worthwhile second corpus in the original archive sweep.
type RepoSearch struct {
	client *githubClient
	logger *zap.Logger
}

// NewRepoSearch builds the repository-search provider.
func NewRepoSearch(cfg GitHubConfig) *RepoSearch {
	c := newGitHubClient(cfg)
	return &RepoSearch{client: c, logger: c.logger}
}

type repoSearchPage struct {
	TotalCount int              `json:"total_count"`
	Items      []repoSearchItem `json:"items"`
}

type repoSearchItem struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
}

// Search pages through repository results, yielding each non-empty
// description as a blob.
func (s *RepoSearch) Search(ctx context.Context, query string, yield func(Blob) bool) error {
	fetched := 0
	for page := 1; fetched < searchResultCap; page++ {
		var result repoSearchPage
		if err := s.client.getJSON(ctx, s.client.searchURL("/search/repositories", query, page), &result); err != nil {
			return fmt.Errorf("repo search page %d: %w", page, err)
		}
		if len(result.Items) == 0 {
			return nil
		}
		for _, item := range result.Items {
			fetched++
			if item.Description == "" {
				metrics.BlobScanned("skipped")
				s.logger.Debug("skipping repo without description", zap.String("repo", item.FullName))
				continue
			}
			if !yield(Blob{Content: item.Description, Provenance: item.FullName}) {
				return nil
			}
		}
		if len(result.Items) < s.client.perPage {
			return nil
		}
	}
	return nil
}
