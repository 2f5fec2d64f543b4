// Package dispatch selects the data source for each fetch and merges
// slot artifacts into one raw-record sequence.
//
// DESIGN: Files are the default source; the warehouse serves when forced,
// when a fetch is event-keyed (mentions), or as the fallback after the
// file path degrades. Fallback is causal, never speculative: it happens
// only after a slot actually fails with a rate limit, upstream outage or
// request rejection, and only when a warehouse client is configured, the
// dataset has a partitioned table, and the filter can be expressed as a
// query. The switch covers the request's full span; records that were
// already yielded from completed slots may recur from the warehouse and
// the stream layer's deduplication collapses them. The dispatcher also
// owns the parser binding: switching sources never switches parsers,
// because warehouse rows arrive column-keyed and the record constructors
// carry the branch for that shape.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/internal/parse"
	"github.com/gdeltkit/gdelt-go/internal/slotfiles"
	"github.com/gdeltkit/gdelt-go/internal/warehouse"
	"github.com/gdeltkit/gdelt-go/models"
)

// Options configures a Dispatcher.
type Options struct {
	Files *slotfiles.Fetcher

	// Warehouse enables the warehouse source when non-nil.
	Warehouse *warehouse.Client

	// Fallback allows automatic files-to-warehouse switching.
	Fallback bool

	Parser  *parse.Parser
	Logger  *monitoring.Logger
	Metrics *monitoring.Metrics
}

// Dispatcher routes fetches to their source.
type Dispatcher struct {
	files    *slotfiles.Fetcher
	wh       *warehouse.Client
	parser   *parse.Parser
	fallback bool
	log      *monitoring.Logger
	metrics  *monitoring.Metrics
}

// New builds a Dispatcher.
func New(opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = monitoring.Nop()
	}
	parser := opts.Parser
	if parser == nil {
		parser = parse.New(log, opts.Metrics)
	}
	return &Dispatcher{
		files:    opts.Files,
		wh:       opts.Warehouse,
		parser:   parser,
		fallback: opts.Fallback,
		log:      log.Component("dispatch"),
		metrics:  opts.Metrics,
	}
}

// Failure records one slot that could not be fetched. Absent slots are
// routine and never appear here.
type Failure struct {
	URL        string
	Stamp      string
	Err        error
	Status     int
	RetryAfter time.Duration
}

// Run is one dispatched fetch: a lazy record sequence plus the
// accounting the stream layer folds into its fetch result. The sequence
// must be consumed on a single goroutine; the accessors are valid once
// iteration stops.
type Run struct {
	// Seq yields raw records. A non-nil error is terminal.
	Seq iter.Seq2[models.Raw, error]

	source   filters.Source
	failures []Failure
	fellBack bool
}

// Failures returns the slots that failed during iteration.
func (r *Run) Failures() []Failure { return r.failures }

// FellBack reports whether the fetch switched to the warehouse.
func (r *Run) FellBack() bool { return r.fellBack }

// Source reports where records were served from; after a fallback it
// names the warehouse.
func (r *Run) Source() filters.Source { return r.source }

// Events dispatches an events fetch.
func (d *Dispatcher) Events(ctx context.Context, f filters.Events) *Run {
	return d.run(ctx, models.TypeEvents, f.Common, func() (*warehouse.Query, error) {
		return warehouse.EventsQuery(f)
	})
}

// Mentions dispatches a mentions fetch. With a warehouse configured,
// auto-source mentions go straight there: they are event-keyed, and
// answering an id lookup by crawling every slot file is the wrong tool.
func (d *Dispatcher) Mentions(ctx context.Context, f filters.Mentions) *Run {
	return d.run(ctx, models.TypeMentions, f.Common, func() (*warehouse.Query, error) {
		return warehouse.MentionsQuery(f)
	})
}

// GKG dispatches a knowledge-graph fetch.
func (d *Dispatcher) GKG(ctx context.Context, f filters.GKG) *Run {
	return d.run(ctx, models.TypeGKG, f.Common, func() (*warehouse.Query, error) {
		return warehouse.GKGQuery(f)
	})
}

// VGKG dispatches a visual knowledge-graph fetch. File-only.
func (d *Dispatcher) VGKG(ctx context.Context, f filters.VGKG) *Run {
	return d.run(ctx, models.TypeVGKG, f.Common, nil)
}

// TVGKG dispatches a television knowledge-graph fetch. File-only.
func (d *Dispatcher) TVGKG(ctx context.Context, f filters.TVGKG) *Run {
	return d.run(ctx, models.TypeTVGKG, f.Common, nil)
}

// WebNGrams dispatches a web ngrams fetch.
func (d *Dispatcher) WebNGrams(ctx context.Context, f filters.WebNGrams) *Run {
	return d.run(ctx, models.TypeWebNGrams, f.Common, func() (*warehouse.Query, error) {
		return warehouse.WebNGramsQuery(f)
	})
}

// BroadcastNGrams dispatches a TV/radio ngrams fetch. File-only; the
// files are discovered through their inventory.
func (d *Dispatcher) BroadcastNGrams(ctx context.Context, f filters.BroadcastNGrams) *Run {
	return d.run(ctx, models.TypeBroadcastNGrams, f.Common, nil)
}

// Graph dispatches a fetch of one graph dataset.
func (d *Dispatcher) Graph(ctx context.Context, f filters.Graph) *Run {
	return d.run(ctx, f.Kind, f.Common, func() (*warehouse.Query, error) {
		return warehouse.GraphQuery(f)
	})
}

// ForType dispatches a selector-free fetch of any dataset. Callers that
// need selectors use the typed entry points.
func (d *Dispatcher) ForType(ctx context.Context, t models.RecordType, c filters.Common) (*Run, error) {
	switch t {
	case models.TypeEvents:
		return d.Events(ctx, filters.Events{Common: c}), nil
	case models.TypeMentions:
		return d.Mentions(ctx, filters.Mentions{Common: c}), nil
	case models.TypeGKG:
		return d.GKG(ctx, filters.GKG{Common: c}), nil
	case models.TypeVGKG:
		return d.VGKG(ctx, filters.VGKG{Common: c}), nil
	case models.TypeTVGKG:
		return d.TVGKG(ctx, filters.TVGKG{Common: c}), nil
	case models.TypeWebNGrams:
		return d.WebNGrams(ctx, filters.WebNGrams{Common: c}), nil
	case models.TypeBroadcastNGrams:
		return d.BroadcastNGrams(ctx, filters.BroadcastNGrams{Common: c}), nil
	}
	if slices.Contains(models.GraphTypes(), t) {
		return d.Graph(ctx, filters.Graph{Common: c, Kind: t}), nil
	}
	return nil, fmt.Errorf("unknown record type %q", t)
}

func (d *Dispatcher) run(ctx context.Context, t models.RecordType, c filters.Common, buildQuery func() (*warehouse.Query, error)) *Run {
	r := &Run{}

	// Prepare the warehouse query up front when the dataset has a table
	// and a client is configured. A builder refusal (translated events,
	// no table) just means this request cannot use the warehouse.
	var (
		q    *warehouse.Query
		qErr error
	)
	if d.wh != nil && buildQuery != nil {
		q, qErr = buildQuery()
	}

	switch c.Source {
	case filters.SourceWarehouse:
		switch {
		case d.wh == nil:
			r.Seq = errSeq(fmt.Errorf("%w: warehouse source requested but no project is configured", gdelterr.ErrMissingCredentials))
		case buildQuery == nil:
			r.Seq = errSeq(fmt.Errorf("%s has no partitioned warehouse table", t))
		case qErr != nil:
			r.Seq = errSeq(qErr)
		default:
			r.source = filters.SourceWarehouse
			r.Seq = d.wh.Rows(ctx, q)
		}
	case filters.SourceFiles:
		r.source = filters.SourceFiles
		r.Seq = d.fileSeq(ctx, t, c, r, nil)
	default:
		if t == models.TypeMentions && q != nil {
			r.source = filters.SourceWarehouse
			r.Seq = d.wh.Rows(ctx, q)
			break
		}
		r.source = filters.SourceFiles
		var fb *warehouse.Query
		if d.fallback {
			fb = q
		}
		r.Seq = d.fileSeq(ctx, t, c, r, fb)
	}
	return r
}

// fileSeq streams slot artifacts through the parser. A non-nil fb query
// arms the warehouse fallback.
func (d *Dispatcher) fileSeq(ctx context.Context, t models.RecordType, c filters.Common, r *Run, fb *warehouse.Query) iter.Seq2[models.Raw, error] {
	policy := c.PolicyOrDefault()
	return func(yield func(models.Raw, error) bool) {
		urls, err := d.files.Enumerate(ctx, t, c.Span, c.Translated)
		if err != nil {
			yield(models.Raw{}, err)
			return
		}

		fellBack := false
		for art, err := range d.files.Stream(ctx, t, urls) {
			if err != nil {
				// Cancellation ends the fetch, whatever the policy says
				// about slot failures.
				if errors.Is(err, gdelterr.ErrCancelled) {
					yield(models.Raw{}, err)
					return
				}
				r.failures = append(r.failures, failureFrom(art, err))
				if gdelterr.Fatal(err) {
					yield(models.Raw{}, err)
					return
				}
				if fb != nil && gdelterr.FallbackTrigger(err) {
					fellBack = true
					break
				}
				switch policy {
				case filters.ErrorWarn:
					d.log.Warn().Err(err).Str("url", art.URL).Msg("slot failed; continuing")
				case filters.ErrorSkip:
					d.log.Debug().Err(err).Str("url", art.URL).Msg("slot failed; skipped")
				default:
					yield(models.Raw{}, err)
					return
				}
				continue
			}
			for raw := range d.parser.Parse(t, art.Body) {
				if !yield(raw, nil) {
					return
				}
			}
		}
		if !fellBack {
			// A cancelled window can drain without yielding anything;
			// surface the interruption instead of a clean end.
			if cerr := ctx.Err(); cerr != nil {
				yield(models.Raw{}, fmt.Errorf("%w: %v", gdelterr.ErrCancelled, cerr))
			}
			return
		}

		r.fellBack = true
		r.source = filters.SourceWarehouse
		d.metrics.RecordFallback()
		d.log.Warn().
			Str("type", t.String()).
			Str("table", fb.Table()).
			Msg("file path unavailable; serving the remainder from the warehouse")

		for raw, err := range d.wh.Rows(ctx, fb) {
			if !yield(raw, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

func failureFrom(art slotfiles.Artifact, err error) Failure {
	f := Failure{URL: art.URL, Stamp: art.Slot.Stamp(), Err: err}
	var serr *gdelterr.StatusError
	if errors.As(err, &serr) {
		f.Status = serr.Status
		f.RetryAfter = serr.RetryAfter
	}
	return f
}

func errSeq(err error) iter.Seq2[models.Raw, error] {
	return func(yield func(models.Raw, error) bool) {
		yield(models.Raw{}, err)
	}
}
