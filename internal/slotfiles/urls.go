// Package slotfiles - urls.go builds slot file URLs.
//
// DESIGN: One table drives everything. The v2 datasets publish flat
// under /gdeltv2/, the v3 datasets under per-dataset directories, and
// the television collections under the /gdeltv2/iatv/ tree. Broadcast
// ngram files follow no computable pattern; they are discovered through
// their inventory (ListAvailable), never generated here.
package slotfiles

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/models"
)

type dataset struct {
	dir      string // path segment under the file server root
	suffix   string
	trSuffix string // machine-translated variant, "" when none exists
	daily    bool   // daily datasets stamp files with a bare date
}

var datasets = map[models.RecordType]dataset{
	models.TypeEvents:   {dir: "gdeltv2", suffix: ".export.CSV.zip", trSuffix: ".translation.export.CSV.zip"},
	models.TypeMentions: {dir: "gdeltv2", suffix: ".mentions.CSV.zip", trSuffix: ".translation.mentions.CSV.zip"},
	models.TypeGKG:      {dir: "gdeltv2", suffix: ".gkg.csv.zip", trSuffix: ".translation.gkg.csv.zip"},
	models.TypeTVGKG:    {dir: "gdeltv2/iatv/gkg", suffix: ".gkg.csv.gz", daily: true},
	models.TypeVGKG:     {dir: "gdeltv3/vgkg", suffix: ".vgkg.v3.csv.gz"},

	models.TypeWebNGrams: {dir: "gdeltv3/webngrams", suffix: ".webngrams.json.gz"},

	models.TypeGQG:  {dir: "gdeltv3/gqg", suffix: ".gqg.json.gz"},
	models.TypeGEG:  {dir: "gdeltv3/geg", suffix: ".geg.json.gz"},
	models.TypeGFG:  {dir: "gdeltv3/gfg", suffix: ".gfg.csv.gz"},
	models.TypeGGG:  {dir: "gdeltv3/ggg", suffix: ".ggg.json.gz"},
	models.TypeGEMG: {dir: "gdeltv3/gemg", suffix: ".gemg.json.gz"},
	models.TypeGAL:  {dir: "gdeltv3/gal", suffix: ".gal.json.gz"},
}

// SlotURL pairs one slot with its download location.
type SlotURL struct {
	Slot Slot
	URL  string
}

// URLFor computes the file URL for one slot of a dataset.
func URLFor(base string, t models.RecordType, slot Slot, translated bool) (string, error) {
	ds, ok := datasets[t]
	if !ok {
		return "", fmt.Errorf("%s files are inventory-driven and have no computed URL pattern", t)
	}
	suffix := ds.suffix
	if translated {
		if ds.trSuffix == "" {
			return "", fmt.Errorf("%s has no translated collection", t)
		}
		suffix = ds.trSuffix
	}
	stamp := slot.Stamp()
	if ds.daily {
		stamp = slot.DayStamp()
	}
	return strings.TrimSuffix(base, "/") + "/" + ds.dir + "/" + stamp + suffix, nil
}

// URLs enumerates the slot URLs covering a span, in slot order.
func URLs(base string, t models.RecordType, span filters.Span, translated bool) (iter.Seq[SlotURL], error) {
	// Surface table problems before any goroutine picks up the sequence.
	first, ok := firstSlot(span, t.Cadence())
	if ok {
		if _, err := URLFor(base, t, first, translated); err != nil {
			return nil, err
		}
	} else if _, ok := datasets[t]; !ok {
		return nil, fmt.Errorf("%s files are inventory-driven and have no computed URL pattern", t)
	}
	return func(yield func(SlotURL) bool) {
		for slot := range Slots(span, t.Cadence()) {
			u, err := URLFor(base, t, slot, translated)
			if err != nil {
				return
			}
			if !yield(SlotURL{Slot: slot, URL: u}) {
				return
			}
		}
	}, nil
}

// Enumerate yields the slot URLs a fetch of t over span must visit.
// Patterned datasets compute them; inventory-driven ones consult the
// published inventory, which costs one network round trip.
func (f *Fetcher) Enumerate(ctx context.Context, t models.RecordType, span filters.Span, translated bool) (iter.Seq[SlotURL], error) {
	if t == models.TypeBroadcastNGrams {
		listed, err := f.ListAvailable(ctx, t, span, translated)
		if err != nil {
			return nil, err
		}
		return slices.Values(listed), nil
	}
	return URLs(f.base, t, span, translated)
}

func firstSlot(span filters.Span, c models.Cadence) (Slot, bool) {
	for slot := range Slots(span, c) {
		return slot, true
	}
	return Slot{}, false
}

// MasterListURL returns the index that enumerates every published file.
func MasterListURL(base string, translated bool) string {
	name := "masterfilelist.txt"
	if translated {
		name = "masterfilelist-translation.txt"
	}
	return strings.TrimSuffix(base, "/") + "/gdeltv2/" + name
}

// BroadcastInventoryURL returns the inventory enumerating broadcast
// ngram files, which carry station and show names no pattern predicts.
func BroadcastInventoryURL(base string) string {
	return strings.TrimSuffix(base, "/") + "/gdeltv3/iatv/ngrams/masterfilelist.txt"
}
