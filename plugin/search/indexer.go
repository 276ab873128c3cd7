// Package search notifies an external search index about the tags of an item.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Config configures an HTTPIndexer.
type Config struct {
	// URL is the base URL of the index service, e.g. "http://search:8080".
	URL string
	// RPS limits outgoing requests per second. Zero means unlimited.
	RPS float64
	// Retries is the number of retries after a failed request.
	Retries int

	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// HTTPIndexer sends index documents to a search service over HTTP:
//
//	PUT {URL}/index/{module}/{itemID}
//	{"language": "en", "fields": {"tags": "go rust"}}
//
// Transient failures (connection errors, 5xx, 429) are retried with backoff.
type HTTPIndexer struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// IndexDocument is the request body of an index call.
type IndexDocument struct {
	Language string            `json:"language"`
	Fields   map[string]string `json:"fields"`
}

// NewHTTPIndexer creates a new HTTP indexer.
func NewHTTPIndexer(cfg Config) *HTTPIndexer {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = slog.Default()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)))
	}

	return &HTTPIndexer{
		client:  retryClient.StandardClient(),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		limiter: limiter,
	}
}

func (i *HTTPIndexer) Index(ctx context.Context, module string, itemID int64, fields map[string]string, language string) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter cancelled: %w", err)
	}

	body, err := json.Marshal(&IndexDocument{Language: language, Fields: fields})
	if err != nil {
		return fmt.Errorf("failed to marshal index document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/index/%s/%s", i.baseURL, url.PathEscape(module), strconv.FormatInt(itemID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("index request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// NopIndexer discards every index notification.
type NopIndexer struct{}

func (NopIndexer) Index(ctx context.Context, module string, itemID int64, fields map[string]string, language string) error {
	return nil
}
