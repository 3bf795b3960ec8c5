package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/poiesic/profmatch/core"
)

// ChromeFetcher renders pages in headless Chrome before parsing them.
// Use it for pages whose content is filled in by script.
type ChromeFetcher struct {
	timeout   time.Duration
	userAgent string
	waitFor   string
	allocOpts []chromedp.ExecAllocatorOption
	logger    *slog.Logger
}

// ChromeOption configures a ChromeFetcher.
type ChromeOption func(*ChromeFetcher) error

// WithChromeTimeout sets the per-fetch timeout, including browser start-up.
func WithChromeTimeout(d time.Duration) ChromeOption {
	return func(f *ChromeFetcher) error {
		if d <= 0 {
			return errors.New("chrome timeout must be positive")
		}
		f.timeout = d
		return nil
	}
}

// WithWaitSelector sets the CSS selector that must be ready before the HTML is captured.
func WithWaitSelector(sel string) ChromeOption {
	return func(f *ChromeFetcher) error {
		if strings.TrimSpace(sel) == "" {
			return errors.New("wait selector cannot be empty")
		}
		f.waitFor = sel
		return nil
	}
}

// WithExecPath points chromedp at a specific Chrome binary.
func WithExecPath(path string) ChromeOption {
	return func(f *ChromeFetcher) error {
		if path != "" {
			f.allocOpts = append(f.allocOpts, chromedp.ExecPath(path))
		}
		return nil
	}
}

// WithChromeLogger sets a custom logger.
func WithChromeLogger(logger *slog.Logger) ChromeOption {
	return func(f *ChromeFetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger.With("component", "chrome-fetcher")
		return nil
	}
}

// NewChromeFetcher creates a headless fetcher. No browser is started until Fetch.
func NewChromeFetcher(opts ...ChromeOption) (*ChromeFetcher, error) {
	f := &ChromeFetcher{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		waitFor:   "body",
		logger:    slog.Default().With("component", "chrome-fetcher"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Fetch validates rawURL, renders it and parses the resulting HTML.
func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.userAgent),
	)
	opts = append(opts, f.allocOpts...)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	start := time.Now()
	resp, err := chromedp.RunResponse(bctx, chromedp.Navigate(u.String()))
	if err != nil {
		f.logger.Warn("navigation failed", "url", u.String(), "err", err)
		return nil, unavailable(err)
	}
	if err := responseStatus(u.String(), resp); err != nil {
		return nil, err
	}

	var html string
	err = chromedp.Run(bctx,
		chromedp.WaitReady(f.waitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		f.logger.Warn("render failed", "url", u.String(), "err", err)
		return nil, unavailable(err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}
	doc.Url = u

	f.logger.Debug("rendered page", "url", u.String(), "bytes", len(html), "elapsed", time.Since(start))
	return doc, nil
}

// responseStatus turns a non-2xx main-frame response into a FetchStatusError.
// A nil response (same-document navigation) is accepted.
func responseStatus(url string, resp *network.Response) error {
	if resp == nil {
		return nil
	}
	if resp.Status < 200 || resp.Status > 299 {
		return &core.FetchStatusError{URL: url, StatusCode: int(resp.Status)}
	}
	return nil
}
