// Package slotfiles - client.go downloads slot files through the cache.
//
// DESIGN: hashicorp/go-retryablehttp supplies the retry loop: 429, 5xx
// and transport errors retry with exponential backoff from 2s capped at
// 60s, honoring Retry-After on 429/503. The passthrough error handler
// hands back the final response after exhaustion so statuses map onto
// the shared error kinds instead of vanishing into a generic message.
// 404 is a routine absent slot, never retried, logged at DEBUG.
package slotfiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/gdeltkit/gdelt-go/internal/config"
	"github.com/gdeltkit/gdelt-go/internal/diskcache"
	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/models"
)

// DefaultWindow is the number of concurrent slot downloads.
const DefaultWindow = 10

// Options configures a Fetcher.
type Options struct {
	HTTP        config.HTTPConfig
	StableAfter time.Duration
	Cache       *diskcache.Cache
	Hosts       *safety.Hosts
	Logger      *monitoring.Logger
	Metrics     *monitoring.Metrics

	// Limiter paces request starts when set. Off by default; the file
	// server needs no politeness delay at window-sized concurrency.
	Limiter *rate.Limiter
}

// Fetcher downloads, caches and extracts slot files.
type Fetcher struct {
	client      *retryablehttp.Client
	hosts       *safety.Hosts
	cache       *diskcache.Cache
	base        string
	window      int
	stableAfter time.Duration
	limiter     *rate.Limiter
	log         *monitoring.Logger
	metrics     *monitoring.Metrics
}

// NewFetcher builds a Fetcher from validated options.
func NewFetcher(opts Options) *Fetcher {
	log := opts.Logger
	if log == nil {
		log = monitoring.Nop()
	}
	window := opts.HTTP.MaxConcurrency
	if window <= 0 {
		window = DefaultWindow
	}
	return &Fetcher{
		client:      newRetryClient(opts.HTTP, log, opts.Metrics),
		hosts:       opts.Hosts,
		cache:       opts.Cache,
		base:        opts.HTTP.FileBaseURL,
		window:      window,
		stableAfter: opts.StableAfter,
		limiter:     opts.Limiter,
		log:         log.Component("slotfiles"),
		metrics:     opts.Metrics,
	}
}

// Close releases idle HTTP connections.
func (f *Fetcher) Close() {
	f.client.HTTPClient.CloseIdleConnections()
}

func newRetryClient(cfg config.HTTPConfig, log *monitoring.Logger, metrics *monitoring.Metrics) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 2 * time.Second
	rc.RetryWaitMax = 60 * time.Second
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = time.Duration(cfg.Timeout)
	}
	rc.Logger = log.Component("http").Leveled()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		if attempt > 0 {
			metrics.RecordRetry()
		}
	}
	return rc
}

// Fetch downloads one slot through the cache and extracts its artifact.
// On failure the returned artifact still carries the slot and URL so
// callers can record which slot failed; Body is nil.
func (f *Fetcher) Fetch(ctx context.Context, t models.RecordType, su SlotURL) (Artifact, error) {
	checked, err := f.hosts.CheckURL(su.URL)
	if err != nil {
		return Artifact{Slot: su.Slot, URL: su.URL}, err
	}
	bad := Artifact{Slot: su.Slot, URL: checked}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return bad, gdelterr.Transport(checked, err)
		}
	}

	start := time.Now()
	path, _, err := f.cache.GetOrFill(ctx, checked, f.policyFor(su.Slot), func(ctx context.Context) (io.ReadCloser, error) {
		return f.download(ctx, checked)
	})
	if err != nil {
		if gdelterr.IsAbsent(err) {
			f.metrics.RecordDownload(t.String(), monitoring.OutcomeAbsent, 0, time.Since(start))
			f.log.Debug().Str("url", checked).Msg("slot absent")
		} else {
			f.metrics.RecordDownload(t.String(), monitoring.OutcomeFailed, 0, time.Since(start))
		}
		return bad, err
	}

	body, err := extractFile(path, kindFor(t))
	if err != nil {
		f.metrics.RecordDownload(t.String(), monitoring.OutcomeFailed, 0, time.Since(start))
		return bad, fmt.Errorf("extracting %s: %w", checked, err)
	}
	f.metrics.RecordDownload(t.String(), monitoring.OutcomeOK, int64(len(body)), time.Since(start))
	return Artifact{Slot: su.Slot, URL: checked, Body: body}, nil
}

// Probe issues a HEAD request for one slot URL and reports whether the
// file exists upstream. Retries follow the usual policy.
func (f *Fetcher) Probe(ctx context.Context, rawURL string) (bool, error) {
	checked, err := f.hosts.CheckURL(rawURL)
	if err != nil {
		return false, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, checked, nil)
	if err != nil {
		return false, fmt.Errorf("building request for %s: %w", checked, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false, gdelterr.Transport(checked, err)
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	if serr := gdelterr.FromStatus(checked, resp.StatusCode, gdelterr.ParseRetryAfter(resp.Header.Get("Retry-After"))); serr != nil {
		return false, serr
	}
	return false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, checked)
}

// policyFor picks the cache policy from the slot's age. Old slots never
// change upstream, so they cache indefinitely.
func (f *Fetcher) policyFor(s Slot) diskcache.Policy {
	if f.stableAfter > 0 && time.Since(s.Time) >= f.stableAfter {
		return diskcache.PolicyStable
	}
	return diskcache.PolicyTTL
}

func (f *Fetcher) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, gdelterr.Transport(url, err)
	}
	if resp.StatusCode != http.StatusOK {
		retryAfter := gdelterr.ParseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		if serr := gdelterr.FromStatus(url, resp.StatusCode, retryAfter); serr != nil {
			return nil, serr
		}
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	if resp.ContentLength >= 0 {
		if err := safety.CheckCompressedSize(resp.ContentLength); err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	// The counting wrapper caps how much an endpoint without a
	// Content-Length can feed us.
	return readCloser{safety.NewCountingReader(resp.Body), resp.Body}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
