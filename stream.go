package gdelt

import (
	"iter"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/internal/dispatch"
	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/models"
)

// SlotFailure describes one slot file that could not be fetched. Absent
// slots are routine and never listed.
type SlotFailure struct {
	// URL is the slot file location that failed.
	URL string
	// Slot is the 14-digit publication stamp.
	Slot string
	// Err carries the classified reason; test with errors.Is against the
	// package sentinels.
	Err error
	// HTTPStatus is the final status code, zero when the failure was not
	// an HTTP reply.
	HTTPStatus int
	// RetryAfter is the upstream-suggested delay, zero when none came.
	RetryAfter time.Duration
}

// FetchResult summarizes a finished fetch.
type FetchResult struct {
	// Records counts what the stream yielded.
	Records int
	// Failed lists the slots that could not be served.
	Failed []SlotFailure
	// Complete is true when every slot was served and no error ended the
	// stream early.
	Complete bool
	// FellBack reports whether the fetch switched from files to the
	// warehouse partway through.
	FellBack bool
	// Source names where records were served from.
	Source filters.Source
}

// Partial reports whether some records may be missing.
func (r FetchResult) Partial() bool { return !r.Complete }

// Stream is the lazy result of one fetch. Records arrive validated,
// deduplicated and filtered as the caller iterates; nothing downloads
// until iteration starts, and breaking out stops the downloads behind
// it. A Stream is consumed once, on a single goroutine.
type Stream[T any] struct {
	t      models.RecordType
	common filters.Common
	run    *dispatch.Run
	from   func(models.Raw) (T, error)
	match  func(T) bool

	log     *monitoring.Logger
	metrics *monitoring.Metrics

	started bool
	records int
	err     error
}

func newStream[T any](c *Client, t models.RecordType, common filters.Common, run *dispatch.Run, from func(models.Raw) (T, error), match func(T) bool) *Stream[T] {
	return &Stream[T]{
		t:       t,
		common:  common,
		run:     run,
		from:    from,
		match:   match,
		log:     c.log,
		metrics: c.metrics,
	}
}

// failedStream carries a validation error to the caller through the
// usual stream shape, so misuse reads the same as upstream trouble.
func failedStream[T any](t models.RecordType, err error) *Stream[T] {
	return &Stream[T]{
		t:       t,
		run:     &dispatch.Run{},
		log:     monitoring.Nop(),
		started: true,
		err:     err,
	}
}

// All yields the validated records. Duplicate raw records are dropped
// before validation under the filter's dedup strategy; records failing
// validation are counted, logged and dropped; the filter's limit caps
// what survives all of that. After iteration, Err and Result report how
// the fetch went.
func (s *Stream[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if s.started {
			return
		}
		s.started = true

		strategy := s.common.DedupOrDefault()
		var seen mapset.Set[string]
		if strategy != models.DedupNone {
			seen = mapset.NewThreadUnsafeSet[string]()
		}

		for raw, err := range s.run.Seq {
			if err != nil {
				s.err = err
				return
			}
			if seen != nil && !seen.Add(models.DedupKey(raw, s.t, strategy)) {
				continue
			}
			rec, err := s.from(raw)
			if err != nil {
				s.metrics.RecordParseWarning(s.t.String())
				s.log.Warn().Err(err).Str("type", s.t.String()).Msg("dropping invalid record")
				continue
			}
			if s.match != nil && !s.match(rec) {
				continue
			}
			s.records++
			if !yield(rec) {
				return
			}
			if s.common.Limit > 0 && s.records >= s.common.Limit {
				return
			}
		}
	}
}

// Err returns the error that ended the stream early, nil after a clean
// end. Slot failures routed past by the error policy are not errors
// here; they are in Result().Failed.
func (s *Stream[T]) Err() error { return s.err }

// Result summarizes the fetch. Meaningful once iteration has finished.
func (s *Stream[T]) Result() FetchResult {
	failures := s.run.Failures()
	failed := make([]SlotFailure, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, SlotFailure{
			URL:        f.URL,
			Slot:       f.Stamp,
			Err:        f.Err,
			HTTPStatus: f.Status,
			RetryAfter: f.RetryAfter,
		})
	}
	return FetchResult{
		Records:  s.records,
		Failed:   failed,
		Complete: s.err == nil && len(failed) == 0,
		FellBack: s.run.FellBack(),
		Source:   s.run.Source(),
	}
}

// Collect drains the stream into a slice. The slice holds whatever was
// yielded before any error; the result carries the accounting either
// way.
func (s *Stream[T]) Collect() ([]T, FetchResult, error) {
	var out []T
	for rec := range s.All() {
		out = append(out, rec)
	}
	return out, s.Result(), s.err
}
