// Package filters defines the immutable query specifications accepted by
// the client. A filter is plain data: constructors and Validate methods
// live here, URL and SQL construction stay with the sources.
package filters

import (
	"fmt"
	"time"

	"github.com/gdeltkit/gdelt-go/models"
)

// Source forces a fetch onto one data source.
type Source string

const (
	SourceAuto      Source = "auto"
	SourceFiles     Source = "files"
	SourceWarehouse Source = "warehouse"
)

// ErrorPolicy routes slot-level failures during a fetch.
type ErrorPolicy string

const (
	// ErrorRaise propagates the first slot failure and ends the stream.
	ErrorRaise ErrorPolicy = "raise"
	// ErrorWarn logs failures and continues; failures land in the fetch
	// result.
	ErrorWarn ErrorPolicy = "warn"
	// ErrorSkip silently skips failed slots (DEBUG log only).
	ErrorSkip ErrorPolicy = "skip"
)

// MaxSpanCap is the widest range any fetch may cover, regardless of
// record type.
const MaxSpanCap = 365 * 24 * time.Hour

// Span is a half-open UTC date range [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// NewSpan builds a Span, normalizing both bounds to UTC.
func NewSpan(start, end time.Time) Span {
	return Span{Start: start.UTC(), End: end.UTC()}
}

// Day builds the one-day span covering a calendar date.
func Day(year int, month time.Month, day int) Span {
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Span{Start: start, End: start.Add(24 * time.Hour)}
}

// Validate checks the span against a record type's widest allowed range.
func (s Span) Validate(t models.RecordType) error {
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("span requires both start and end")
	}
	if !s.End.After(s.Start) {
		return fmt.Errorf("span end %s is not after start %s", s.End.Format(time.RFC3339), s.Start.Format(time.RFC3339))
	}
	width := s.End.Sub(s.Start)
	if width > MaxSpanCap {
		return fmt.Errorf("span of %s exceeds the %s cap", width, MaxSpanCap)
	}
	if max := t.MaxSpan(); width > max {
		return fmt.Errorf("span of %s exceeds the %s limit for %s", width, max, t)
	}
	return nil
}

// Duration returns the span width.
func (s Span) Duration() time.Duration { return s.End.Sub(s.Start) }

// Common carries the settings shared by every dataset filter.
type Common struct {
	Span    Span
	Dedup   models.DedupStrategy
	OnError ErrorPolicy
	Source  Source

	// Limit caps the number of records yielded; 0 means unlimited.
	Limit int

	// Translated selects the machine-translated collection for datasets
	// that publish one.
	Translated bool
}

func (c Common) validate(t models.RecordType) error {
	if err := c.Span.Validate(t); err != nil {
		return err
	}
	if c.Dedup != "" && !c.Dedup.Valid() {
		return fmt.Errorf("unknown dedup strategy %q", c.Dedup)
	}
	switch c.OnError {
	case "", ErrorRaise, ErrorWarn, ErrorSkip:
	default:
		return fmt.Errorf("unknown error policy %q", c.OnError)
	}
	switch c.Source {
	case "", SourceAuto, SourceFiles, SourceWarehouse:
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.Limit < 0 {
		return fmt.Errorf("negative limit %d", c.Limit)
	}
	if c.Translated && !t.Translatable() {
		return fmt.Errorf("%s has no translated collection", t)
	}
	return nil
}

// Validate checks the shared settings against a record type's limits.
// The typed filters run the same checks through their own Validate
// methods; this entry serves raw, kind-dynamic fetches.
func (c Common) Validate(t models.RecordType) error { return c.validate(t) }

// DedupOrDefault resolves the effective dedup strategy.
func (c Common) DedupOrDefault() models.DedupStrategy {
	if c.Dedup == "" {
		return models.DefaultDedup
	}
	return c.Dedup
}

// PolicyOrDefault resolves the effective error policy.
func (c Common) PolicyOrDefault() ErrorPolicy {
	if c.OnError == "" {
		return ErrorRaise
	}
	return c.OnError
}

// Events selects event records.
type Events struct {
	Common

	// Countries restricts by ActionGeo FIPS country code.
	Countries []string
	// CAMEOCodes restricts by event code, exact match. Codes are strings
	// with significant leading zeros.
	CAMEOCodes []string
	// Actor1Codes and Actor2Codes restrict by actor code prefix.
	Actor1Codes []string
	Actor2Codes []string
}

// Validate checks the filter for contradictions before any I/O happens.
func (f Events) Validate() error {
	if err := f.Common.validate(models.TypeEvents); err != nil {
		return err
	}
	for _, cc := range f.Countries {
		if len(cc) != 2 {
			return fmt.Errorf("country code %q is not a two-letter FIPS code", cc)
		}
	}
	for _, code := range f.CAMEOCodes {
		if len(code) < 2 || len(code) > 4 {
			return fmt.Errorf("CAMEO code %q is not 2-4 digits", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				return fmt.Errorf("CAMEO code %q contains a non-digit", code)
			}
		}
	}
	return nil
}

// Mentions selects mention records. Mentions are keyed by the events they
// report, so EventIDs is the primary selector and the warehouse is the
// natural source.
type Mentions struct {
	Common

	EventIDs []int64
}

// Validate checks the filter.
func (f Mentions) Validate() error {
	return f.Common.validate(models.TypeMentions)
}

// GKG selects knowledge-graph records.
type GKG struct {
	Common

	// Themes restricts to records tagged with any of these themes.
	Themes []string
	// SourceLangs restricts translated records by source language.
	SourceLangs []string
}

// Validate checks the filter.
func (f GKG) Validate() error {
	if err := f.Common.validate(models.TypeGKG); err != nil {
		return err
	}
	for _, th := range f.Themes {
		if th == "" {
			return fmt.Errorf("empty theme selector")
		}
	}
	return nil
}

// VGKG selects visual knowledge-graph records.
type VGKG struct {
	Common
}

// Validate checks the filter.
func (f VGKG) Validate() error {
	return f.Common.validate(models.TypeVGKG)
}

// TVGKG selects television knowledge-graph records.
type TVGKG struct {
	Common

	// Stations restricts by station identifier (e.g. "CNN").
	Stations []string
	// Shows restricts by show name.
	Shows []string
}

// Validate checks the filter.
func (f TVGKG) Validate() error {
	if err := f.Common.validate(models.TypeTVGKG); err != nil {
		return err
	}
	for _, st := range f.Stations {
		if st == "" {
			return fmt.Errorf("empty station selector")
		}
	}
	return nil
}

// WebNGrams selects web ngram records.
type WebNGrams struct {
	Common

	// Langs restricts by language code.
	Langs []string
	// NGrams restricts to specific words.
	NGrams []string
}

// Validate checks the filter.
func (f WebNGrams) Validate() error {
	return f.Common.validate(models.TypeWebNGrams)
}

// BroadcastNGrams selects TV and radio ngram records.
type BroadcastNGrams struct {
	Common

	Stations []string
	Shows    []string
}

// Validate checks the filter.
func (f BroadcastNGrams) Validate() error {
	return f.Common.validate(models.TypeBroadcastNGrams)
}

// Graph selects records from one of the six graph datasets.
type Graph struct {
	Common

	// Kind names the graph dataset; required.
	Kind models.RecordType
}

// Validate checks the filter.
func (f Graph) Validate() error {
	known := false
	for _, g := range models.GraphTypes() {
		if f.Kind == g {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%q is not a graph dataset", f.Kind)
	}
	return f.Common.validate(f.Kind)
}
