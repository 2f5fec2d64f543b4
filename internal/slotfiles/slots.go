// Package slotfiles turns a date range into slot URLs, downloads them
// through the disk cache with a bounded window of concurrent transfers,
// and extracts the contained artifact under the decompression guard.
//
// DESIGN: The window is a fixed pool of workers on unbuffered channels.
// A worker picks up its next URL only after the caller has consumed its
// previous artifact, so at most `window` decompressed artifacts exist
// at once regardless of how far the caller lags. Completion order, not
// slot order, reaches the caller.
package slotfiles

import (
	"iter"
	"time"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/models"
)

const stampLayout = "20060102150405"

// EarliestSlot is the first published v2 slot. Enumeration clamps to it
// so pre-history ranges do not generate thousands of guaranteed 404s.
var EarliestSlot = time.Date(2015, 2, 18, 0, 0, 0, 0, time.UTC)

// Slot is one publication timestamp, quantized to the dataset's cadence.
type Slot struct {
	Time time.Time
}

// Stamp formats the slot the way slot filenames spell it.
func (s Slot) Stamp() string { return s.Time.UTC().Format(stampLayout) }

// DayStamp formats the slot as a bare date, used by daily datasets.
func (s Slot) DayStamp() string { return s.Time.UTC().Format("20060102") }

// ParseStamp decodes a 14-digit slot stamp, or an 8-digit day stamp for
// daily datasets.
func ParseStamp(s string) (Slot, bool) {
	var layout string
	switch len(s) {
	case 14:
		layout = stampLayout
	case 8:
		layout = "20060102"
	default:
		return Slot{}, false
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return Slot{}, false
	}
	return Slot{Time: t}, true
}

// alignUp rounds t up to the next cadence boundary, or returns t when
// already aligned. Boundaries are taken on the UTC clock.
func alignUp(t time.Time, step time.Duration) time.Time {
	tr := t.UTC().Truncate(step)
	if tr.Before(t) {
		tr = tr.Add(step)
	}
	return tr
}

// Slots enumerates every publication timestamp inside the half-open
// span, aligned to the cadence.
func Slots(span filters.Span, c models.Cadence) iter.Seq[Slot] {
	step := time.Duration(c)
	start := span.Start
	if start.Before(EarliestSlot) {
		start = EarliestSlot
	}
	return func(yield func(Slot) bool) {
		for t := alignUp(start, step); t.Before(span.End); t = t.Add(step) {
			if !yield(Slot{Time: t}) {
				return
			}
		}
	}
}

// CountSlots reports how many slots the span covers at the cadence.
func CountSlots(span filters.Span, c models.Cadence) int {
	n := 0
	for range Slots(span, c) {
		n++
	}
	return n
}
