// Package fetch performs polite, retried, cached page fetches: robots
// check, per-domain rate limiting, a single GET, and text extraction.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"tradewatch/internal/cache"
	"tradewatch/internal/extract"
	"tradewatch/internal/metrics"
	"tradewatch/internal/ratelimit"
	"tradewatch/internal/retry"
	"tradewatch/internal/robots"
)

// maxBodyBytes bounds how much of a page body is read.
const maxBodyBytes = 10 << 20

// Result is the outcome of one fetch. Raw and Text are both empty when
// robots disallowed the URL or extraction produced nothing; RobotsDenied
// distinguishes the former from a genuinely empty page.
type Result struct {
	URL          string
	Raw          string
	Text         string
	RobotsDenied bool
}

// Config carries the fetcher knobs.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RateInterval time.Duration
}

// Fetcher executes the robots → rate-limit → GET → extract sequence.
type Fetcher struct {
	cfg     Config
	limiter *ratelimit.DomainLimiter
	policy  robots.Policy
	store   *cache.Store
	client  *http.Client
	retry   retry.Policy
	logger  *zap.Logger
}

// New wires a Fetcher. The store may be nil for uncached use.
func New(cfg Config, store *cache.Store, policy robots.Policy, logger *zap.Logger) *Fetcher {
	if policy == nil {
		policy = robots.AllowAll{}
	}
	return &Fetcher{
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RateInterval),
		policy:  policy,
		store:   store,
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   retry.Default().WithAttempts(cfg.MaxRetries),
		logger:  logger,
	}
}

// Fetch performs one polite fetch of url, retrying the whole sequence on
// transient failures. Robots denial and empty extraction are terminal
// outcomes, not errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{URL: rawURL}, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	domain := parsed.Host

	result := Result{URL: rawURL}
	err = f.retry.Do(ctx, func() error {
		if err := f.limiter.Wait(ctx, domain); err != nil {
			return retry.Permanent(err)
		}
		if !f.policy.CanFetch(ctx, rawURL) {
			f.logger.Info("robots disallowed", zap.String("url", rawURL))
			result = Result{URL: rawURL, RobotsDenied: true}
			return nil
		}
		raw, err := f.get(ctx, rawURL)
		if err != nil {
			return err
		}
		result = Result{
			URL:  rawURL,
			Raw:  raw,
			Text: extract.Text(raw),
		}
		return nil
	})
	if err != nil {
		return Result{URL: rawURL}, err
	}
	return result, nil
}

// FetchWithCache is the write-through cached variant. In dry-run mode it
// only replays: the pair of cached artifacts is served when complete and
// an empty result is returned otherwise, with no network access at all.
// A live run always fetches and persists raw before extracted text; a
// partial result (raw fetched, extraction empty) still keeps the raw.
func (f *Fetcher) FetchWithCache(ctx context.Context, runID, rawURL string, dryRun bool) (Result, error) {
	if dryRun {
		return f.replay(runID, rawURL)
	}

	start := time.Now()
	result, err := f.Fetch(ctx, rawURL)
	metrics.ObserveFetch(start)
	if err != nil {
		return result, err
	}

	if result.Raw != "" {
		if werr := f.store.WriteRaw(runID, rawURL, []byte(result.Raw)); werr != nil {
			return result, fmt.Errorf("cache raw: %w", werr)
		}
	}
	if result.Text != "" {
		if werr := f.store.WriteText(runID, rawURL, result.Text); werr != nil {
			return result, fmt.Errorf("cache text: %w", werr)
		}
	}
	return result, nil
}

func (f *Fetcher) replay(runID, rawURL string) (Result, error) {
	if !f.store.HasPair(runID, rawURL) {
		return Result{URL: rawURL}, nil
	}
	raw, _, err := f.store.ReadRaw(runID, rawURL)
	if err != nil {
		return Result{URL: rawURL}, err
	}
	text, _, err := f.store.ReadText(runID, rawURL)
	if err != nil {
		return Result{URL: rawURL}, err
	}
	return Result{URL: rawURL, Raw: raw, Text: text}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body %s: %w", rawURL, err)
	}
	return string(body), nil
}
