// Package gdelt fetches GDELT records: events, mentions, the knowledge
// graphs, ngrams and the graph datasets, served from slot files, the
// BigQuery warehouse, or the analysis services, as lazy validated
// streams.
//
// DESIGN: One Client owns the whole pipeline: config resolution, the
// disk cache, the windowed file fetcher, the optional warehouse client,
// the REST client, and the dispatcher that picks among them. Fetch
// methods return a Stream immediately; nothing downloads until the
// caller ranges over it, and the bounded window follows whatever pace
// the caller sets. Filters are validated before any I/O, so a bad span
// or selector costs nothing upstream. All logging flows through one
// zerolog sink and all counters hang off one Metrics value the caller
// may register with its own Prometheus registry.
package gdelt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/internal/config"
	"github.com/gdeltkit/gdelt-go/internal/diskcache"
	"github.com/gdeltkit/gdelt-go/internal/dispatch"
	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/internal/restapi"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/internal/slotfiles"
	"github.com/gdeltkit/gdelt-go/internal/warehouse"
	"github.com/gdeltkit/gdelt-go/models"
)

// Client is the entry point to every data source. Safe for concurrent
// use; individual Streams are not.
type Client struct {
	cfg     *config.Config
	log     *monitoring.Logger
	metrics *monitoring.Metrics
	cache   *diskcache.Cache
	files   *slotfiles.Fetcher
	wh      *warehouse.Client
	rest    *restapi.Client
	disp    *dispatch.Dispatcher
}

// New builds a Client. Configuration resolves option arguments over
// GDELT_* environment variables over the config file over defaults. The
// warehouse source activates only when a project id is configured; its
// credentials are checked here, not mid-fetch.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	cfg, err := config.Load(s.configFile)
	if err != nil {
		return nil, err
	}
	for _, mut := range s.mutate {
		mut(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := monitoring.New(cfg.Logging)
	metrics := monitoring.NewMetrics()

	hosts, err := safety.NewHosts(cfg.HTTP.FileBaseURL, cfg.HTTP.APIBaseURL)
	if err != nil {
		return nil, err
	}

	cache, err := diskcache.New(diskcache.Options{
		Dir:       cfg.Cache.Dir,
		TTL:       time.Duration(cfg.Cache.TTL),
		MasterTTL: time.Duration(cfg.Cache.MasterTTL),
		Logger:    log,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, err
	}

	files := slotfiles.NewFetcher(slotfiles.Options{
		HTTP:        cfg.HTTP,
		StableAfter: time.Duration(cfg.Cache.StableAfter),
		Cache:       cache,
		Hosts:       hosts,
		Logger:      log,
		Metrics:     metrics,
	})

	var wh *warehouse.Client
	if cfg.ProjectID != "" {
		wh, err = warehouse.New(ctx, warehouse.Options{
			ProjectID:    cfg.ProjectID,
			Credentials:  cfg.Credentials,
			QueryTimeout: time.Duration(cfg.QueryTimeout),
			Logger:       log,
			Metrics:      metrics,
		})
		if err != nil {
			files.Close()
			cache.Close()
			return nil, err
		}
	}

	c := &Client{
		cfg:     cfg,
		log:     log.Component("client"),
		metrics: metrics,
		cache:   cache,
		files:   files,
		wh:      wh,
		rest: restapi.New(restapi.Options{
			HTTP:    cfg.HTTP,
			Hosts:   hosts,
			Logger:  log,
			Metrics: metrics,
		}),
		disp: dispatch.New(dispatch.Options{
			Files:     files,
			Warehouse: wh,
			Fallback:  cfg.Source.Fallback,
			Logger:    log,
			Metrics:   metrics,
		}),
	}
	c.log.Debug().
		Bool("warehouse", wh != nil).
		Bool("fallback", cfg.Source.Fallback).
		Str("cache_dir", cfg.Cache.Dir).
		Msg("client ready")
	return c, nil
}

// Close releases connections, the warehouse client and the cache
// manifest. Streams must not be consumed after Close.
func (c *Client) Close() error {
	c.files.Close()
	c.rest.Close()
	var errs []error
	if c.wh != nil {
		errs = append(errs, c.wh.Close())
	}
	errs = append(errs, c.cache.Close())
	return errors.Join(errs...)
}

// RegisterMetrics attaches the client's Prometheus collectors to reg.
// Call at most once per registry.
func (c *Client) RegisterMetrics(reg prometheus.Registerer) error {
	return c.metrics.Register(reg)
}

// begin tags the fetch with a request id for log correlation, keeping
// any id the caller already put in the context.
func (c *Client) begin(ctx context.Context, what string) context.Context {
	id := monitoring.RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = monitoring.WithRequestIDContext(ctx, id)
	}
	c.log.Debug().Str("request_id", id).Str("fetch", what).Msg("dispatching")
	return ctx
}

// Events streams event records covering the filter's span.
func (c *Client) Events(ctx context.Context, f filters.Events) *Stream[models.Event] {
	if err := f.Validate(); err != nil {
		return failedStream[models.Event](models.TypeEvents, err)
	}
	ctx = c.begin(ctx, models.TypeEvents.String())
	return newStream(c, models.TypeEvents, f.Common, c.disp.Events(ctx, f), models.EventFromRaw, f.Matches)
}

// Mentions streams mention records. With a warehouse configured these
// are served from there by default; mentions are event-keyed and the
// file layout would force an exhaustive scan.
func (c *Client) Mentions(ctx context.Context, f filters.Mentions) *Stream[models.Mention] {
	if err := f.Validate(); err != nil {
		return failedStream[models.Mention](models.TypeMentions, err)
	}
	ctx = c.begin(ctx, models.TypeMentions.String())
	return newStream(c, models.TypeMentions, f.Common, c.disp.Mentions(ctx, f), models.MentionFromRaw, f.Matches)
}

// GKG streams knowledge-graph records.
func (c *Client) GKG(ctx context.Context, f filters.GKG) *Stream[models.GKG] {
	if err := f.Validate(); err != nil {
		return failedStream[models.GKG](models.TypeGKG, err)
	}
	ctx = c.begin(ctx, models.TypeGKG.String())
	return newStream(c, models.TypeGKG, f.Common, c.disp.GKG(ctx, f), models.GKGFromRaw, f.Matches)
}

// VGKG streams visual knowledge-graph records.
func (c *Client) VGKG(ctx context.Context, f filters.VGKG) *Stream[models.VGKG] {
	if err := f.Validate(); err != nil {
		return failedStream[models.VGKG](models.TypeVGKG, err)
	}
	ctx = c.begin(ctx, models.TypeVGKG.String())
	return newStream(c, models.TypeVGKG, f.Common, c.disp.VGKG(ctx, f), models.VGKGFromRaw, nil)
}

// TVGKG streams television knowledge-graph records.
func (c *Client) TVGKG(ctx context.Context, f filters.TVGKG) *Stream[models.TVGKG] {
	if err := f.Validate(); err != nil {
		return failedStream[models.TVGKG](models.TypeTVGKG, err)
	}
	ctx = c.begin(ctx, models.TypeTVGKG.String())
	return newStream(c, models.TypeTVGKG, f.Common, c.disp.TVGKG(ctx, f), models.TVGKGFromRaw, f.Matches)
}

// WebNGrams streams web ngram records.
func (c *Client) WebNGrams(ctx context.Context, f filters.WebNGrams) *Stream[models.WebNGram] {
	if err := f.Validate(); err != nil {
		return failedStream[models.WebNGram](models.TypeWebNGrams, err)
	}
	ctx = c.begin(ctx, models.TypeWebNGrams.String())
	return newStream(c, models.TypeWebNGrams, f.Common, c.disp.WebNGrams(ctx, f), models.WebNGramFromRaw, f.Matches)
}

// BroadcastNGrams streams TV and radio ngram records, discovered through
// their published inventory.
func (c *Client) BroadcastNGrams(ctx context.Context, f filters.BroadcastNGrams) *Stream[models.BroadcastNGram] {
	if err := f.Validate(); err != nil {
		return failedStream[models.BroadcastNGram](models.TypeBroadcastNGrams, err)
	}
	ctx = c.begin(ctx, models.TypeBroadcastNGrams.String())
	return newStream(c, models.TypeBroadcastNGrams, f.Common, c.disp.BroadcastNGrams(ctx, f), models.BroadcastNGramFromRaw, f.Matches)
}

// The six graph datasets get one typed method each; the Kind field of
// the shared Graph filter is set here, so a filter built for one method
// can be reused on another.

// GQG streams quotation-graph records.
func (c *Client) GQG(ctx context.Context, f filters.Graph) *Stream[models.GQG] {
	return graphStream(ctx, c, f, models.TypeGQG, models.GQGFromRaw)
}

// GEG streams entity-graph records.
func (c *Client) GEG(ctx context.Context, f filters.Graph) *Stream[models.GEG] {
	return graphStream(ctx, c, f, models.TypeGEG, models.GEGFromRaw)
}

// GFG streams frontpage-graph links.
func (c *Client) GFG(ctx context.Context, f filters.Graph) *Stream[models.GFG] {
	return graphStream(ctx, c, f, models.TypeGFG, models.GFGFromRaw)
}

// GGG streams geographic-graph records.
func (c *Client) GGG(ctx context.Context, f filters.Graph) *Stream[models.GGG] {
	return graphStream(ctx, c, f, models.TypeGGG, models.GGGFromRaw)
}

// GEMG streams embedded-metadata-graph records.
func (c *Client) GEMG(ctx context.Context, f filters.Graph) *Stream[models.GEMG] {
	return graphStream(ctx, c, f, models.TypeGEMG, models.GEMGFromRaw)
}

// GAL streams article-list records.
func (c *Client) GAL(ctx context.Context, f filters.Graph) *Stream[models.GAL] {
	return graphStream(ctx, c, f, models.TypeGAL, models.GALFromRaw)
}

func graphStream[T any](ctx context.Context, c *Client, f filters.Graph, kind models.RecordType, from func(models.Raw) (T, error)) *Stream[T] {
	f.Kind = kind
	if err := f.Validate(); err != nil {
		return failedStream[T](kind, err)
	}
	ctx = c.begin(ctx, kind.String())
	return newStream(c, kind, f.Common, c.disp.Graph(ctx, f), from, nil)
}

// Raw streams undecoded records of any dataset: cells or fields exactly
// as the source delivered them. Useful for datasets consumed by
// downstream schema-aware tooling.
func (c *Client) Raw(ctx context.Context, t models.RecordType, common filters.Common) *Stream[models.Raw] {
	if err := common.Validate(t); err != nil {
		return failedStream[models.Raw](t, err)
	}
	ctx = c.begin(ctx, t.String())
	run, err := c.disp.ForType(ctx, t, common)
	if err != nil {
		return failedStream[models.Raw](t, err)
	}
	return newStream(c, t, common, run, func(r models.Raw) (models.Raw, error) { return r, nil }, nil)
}

// DocSearch queries the article search service.
func (c *Client) DocSearch(ctx context.Context, f filters.Doc) ([]models.Article, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.rest.DocArticles(c.begin(ctx, "doc"), f)
}

// DocTimeline queries the article search service in a timeline mode.
func (c *Client) DocTimeline(ctx context.Context, f filters.Doc) ([]models.TimelinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.rest.DocTimeline(c.begin(ctx, "doc-timeline"), f)
}

// Geo queries the geographic search service.
func (c *Client) Geo(ctx context.Context, f filters.Geo) ([]models.GeoPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.rest.Geo(c.begin(ctx, "geo"), f)
}

// Context queries the contextual search service.
func (c *Client) Context(ctx context.Context, f filters.Context) ([]models.ContextResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.rest.Context(c.begin(ctx, "context"), f)
}

// TV queries the television explorer.
func (c *Client) TV(ctx context.Context, f filters.TV) ([]models.TimelinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.rest.TV(c.begin(ctx, "tv"), f)
}

// TVAI queries the television AI explorer.
func (c *Client) TVAI(ctx context.Context, f filters.TVAI) ([]models.TimelinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return c.rest.TVAI(c.begin(ctx, "tvai"), f)
}

// SlotRef names one published slot file.
type SlotRef struct {
	Time time.Time
	URL  string
}

// SlotURLs returns the slot files a fetch of t over span would visit.
// Patterned datasets compute them; inventory-driven ones consult the
// published inventory.
func (c *Client) SlotURLs(ctx context.Context, t models.RecordType, span filters.Span, translated bool) ([]SlotRef, error) {
	if err := span.Validate(t); err != nil {
		return nil, err
	}
	urls, err := c.files.Enumerate(ctx, t, span, translated)
	if err != nil {
		return nil, err
	}
	var out []SlotRef
	for su := range urls {
		out = append(out, SlotRef{Time: su.Slot.Time, URL: su.URL})
	}
	return out, nil
}

// ListAvailable enumerates the slot files actually published for t over
// span, from the master inventory rather than the URL pattern. Slots
// the pattern predicts but the inventory lacks are simply not listed.
func (c *Client) ListAvailable(ctx context.Context, t models.RecordType, span filters.Span, translated bool) ([]SlotRef, error) {
	if err := span.Validate(t); err != nil {
		return nil, err
	}
	listed, err := c.files.ListAvailable(ctx, t, span, translated)
	if err != nil {
		return nil, err
	}
	out := make([]SlotRef, 0, len(listed))
	for _, su := range listed {
		out = append(out, SlotRef{Time: su.Slot.Time, URL: su.URL})
	}
	return out, nil
}

// ProbeSlot reports whether a slot file exists upstream, without
// downloading it.
func (c *Client) ProbeSlot(ctx context.Context, url string) (bool, error) {
	return c.files.Probe(ctx, url)
}

// CacheStats reports how many artifacts the disk cache holds and their
// total size in bytes.
func (c *Client) CacheStats(ctx context.Context) (entries int, bytes int64, err error) {
	return c.cache.Stats(ctx)
}

// CachePrune drops expired cache entries, returning how many were
// removed.
func (c *Client) CachePrune(ctx context.Context) (int, error) {
	return c.cache.Prune(ctx)
}

// CacheClear removes every cached artifact.
func (c *Client) CacheClear(ctx context.Context) (int, error) {
	return c.cache.Clear(ctx)
}
