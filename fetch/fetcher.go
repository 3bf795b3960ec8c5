package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/profmatch/core"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBytes caps the page body that is parsed.
	DefaultMaxBytes int64 = 5 << 20

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "profmatch/1.0 (+https://github.com/poiesic/profmatch)"
)

// Fetcher obtains a parsed document for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// HTTPFetcher fetches pages with a plain HTTP GET.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	logger    *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher) error

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		f.client = client
		return nil
	}
}

// WithTimeout sets the per-fetch timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		f.timeout = d
		return nil
	}
}

// WithMaxBytes caps the number of body bytes read.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) error {
		if n <= 0 {
			return errors.New("max bytes must be positive")
		}
		f.maxBytes = n
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) error {
		f.userAgent = ua
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger.With("component", "http-fetcher")
		return nil
	}
}

// NewHTTPFetcher creates a fetcher with default timeout and body cap.
func NewHTTPFetcher(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		client:    &http.Client{},
		timeout:   DefaultTimeout,
		maxBytes:  DefaultMaxBytes,
		userAgent: DefaultUserAgent,
		logger:    slog.Default().With("component", "http-fetcher"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Fetch validates rawURL, GETs it and parses the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", "url", u.String(), "err", err)
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.FetchStatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		// A body read that dies halfway is a transport failure, not a bad page.
		return nil, unavailable(err)
	}
	doc.Url = u

	f.logger.Debug("fetched page", "url", u.String(), "status", resp.StatusCode, "elapsed", time.Since(start))
	return doc, nil
}

// unavailable maps transport failures and timeouts to core.ErrFetchUnavailable.
// Caller cancellation passes through unchanged.
func unavailable(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrFetchUnavailable, err)
}
