// Package restapi queries the GDELT analysis services: DOC full-text
// search, GEO aggregation, Context snippets and the two television
// APIs.
//
// DESIGN: One shared GET path does everything: allow-list check, pacing,
// retry with backoff, a capped read, and a JSON validity check at the
// boundary. The services answer bad queries with HTTP 200 and a plain
// text message, so "is it JSON" is the real success test; the first few
// hundred bytes of a non-JSON reply become the error detail. Responses
// decode through gjson into Raw field maps, which keeps REST records on
// the same constructor path as file and warehouse rows. These services
// never participate in warehouse fallback.
package restapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/gdeltkit/gdelt-go/internal/config"
	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/models"
)

const (
	// maxResponseBytes caps how much of a reply is read. The largest
	// legitimate responses (dense GEO feature collections) stay well
	// under this.
	maxResponseBytes = 32 << 20

	// maxErrorDetail bounds how much of a non-JSON reply lands in the
	// error message.
	maxErrorDetail = 300
)

// Options configures a Client.
type Options struct {
	HTTP    config.HTTPConfig
	Hosts   *safety.Hosts
	Logger  *monitoring.Logger
	Metrics *monitoring.Metrics

	// Limiter paces request starts. Nil installs the default pace of
	// four requests per second.
	Limiter *rate.Limiter
}

// Client queries the analysis services.
type Client struct {
	http    *retryablehttp.Client
	base    string
	hosts   *safety.Hosts
	limiter *rate.Limiter
	log     *monitoring.Logger
	metrics *monitoring.Metrics
}

// New builds a Client.
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = monitoring.Nop()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 1)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.HTTP.MaxRetries
	rc.RetryWaitMin = 2 * time.Second
	rc.RetryWaitMax = 60 * time.Second
	if opts.HTTP.Timeout > 0 {
		rc.HTTPClient.Timeout = time.Duration(opts.HTTP.Timeout)
	}
	rc.Logger = log.Component("http").Leveled()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		if attempt > 0 {
			opts.Metrics.RecordRetry()
		}
	}

	return &Client{
		http:    rc,
		base:    strings.TrimSuffix(opts.HTTP.APIBaseURL, "/"),
		hosts:   opts.Hosts,
		limiter: limiter,
		log:     log.Component("restapi"),
		metrics: opts.Metrics,
	}
}

// Close releases idle HTTP connections.
func (c *Client) Close() {
	c.http.HTTPClient.CloseIdleConnections()
}

// get performs one service request and returns the validated JSON body.
func (c *Client) get(ctx context.Context, service string, vals url.Values) ([]byte, error) {
	u := c.base + "/" + service + "/" + service + "?" + vals.Encode()
	checked, err := c.hosts.CheckURL(u)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, gdelterr.Transport(checked, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, checked, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", checked, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, gdelterr.Transport(checked, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryAfter := gdelterr.ParseRetryAfter(resp.Header.Get("Retry-After"))
		if resp.StatusCode == http.StatusNotFound {
			// Unlike slot files, a missing service endpoint is a caller
			// mistake, not a routine gap.
			return nil, &gdelterr.StatusError{Kind: gdelterr.ErrBadRequest, URL: checked, Status: resp.StatusCode}
		}
		if serr := gdelterr.FromStatus(checked, resp.StatusCode, retryAfter); serr != nil {
			return nil, serr
		}
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, checked)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, gdelterr.Transport(checked, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s: %s", gdelterr.ErrBadRequest, service, errorDetail(body))
	}

	c.log.Debug().
		Str("service", service).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("service reply")
	return body, nil
}

// errorDetail extracts the leading text of a non-JSON reply.
func errorDetail(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorDetail {
		s = s[:maxErrorDetail] + "..."
	}
	return s
}

// flatten turns one scalar-valued JSON object into a raw record.
func flatten(obj gjson.Result) models.Raw {
	fields := make(map[string]string)
	obj.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.Null {
			return true
		}
		if s := v.String(); s != "" {
			fields[k.String()] = s
		}
		return true
	})
	return models.Raw{Fields: fields}
}

// skipped records one service result that failed validation.
func (c *Client) skipped(service string, err error) {
	c.metrics.RecordParseWarning(service)
	c.log.Warn().Err(err).Str("service", service).Msg("skipping malformed result")
}
