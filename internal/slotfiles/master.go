// Package slotfiles - master.go reads the upstream file inventories.
//
// DESIGN: The master list is the authoritative enumeration: every
// published file, one per line, `size md5 url`. It refreshes upstream
// every 15 minutes, so it caches under the short master policy rather
// than the artifact TTL. Broadcast ngram inventories reuse the same
// parser; their lines may carry the URL alone.
package slotfiles

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/internal/diskcache"
	"github.com/gdeltkit/gdelt-go/models"
)

// MasterEntry is one line of a file inventory.
type MasterEntry struct {
	Size int64
	MD5  string
	URL  string
}

// MasterList fetches and parses the master file list.
func (f *Fetcher) MasterList(ctx context.Context, translated bool) ([]MasterEntry, error) {
	return f.inventory(ctx, MasterListURL(f.base, translated))
}

// ListAvailable enumerates the published slots of a dataset inside a
// span by consulting the inventory instead of computing URLs. This is
// the path for datasets with no computable pattern and for callers that
// want to skip slots known to be missing.
func (f *Fetcher) ListAvailable(ctx context.Context, t models.RecordType, span filters.Span, translated bool) ([]SlotURL, error) {
	var (
		entries []MasterEntry
		err     error
	)
	if t == models.TypeBroadcastNGrams {
		entries, err = f.inventory(ctx, BroadcastInventoryURL(f.base))
	} else {
		entries, err = f.MasterList(ctx, translated)
	}
	if err != nil {
		return nil, err
	}

	suffix := ""
	if ds, ok := datasets[t]; ok {
		suffix = ds.suffix
		if translated && ds.trSuffix != "" {
			suffix = ds.trSuffix
		}
	}

	var out []SlotURL
	for _, e := range entries {
		if suffix != "" && !strings.HasSuffix(e.URL, suffix) {
			continue
		}
		slot, ok := slotOf(e.URL, suffix)
		if !ok {
			continue
		}
		if slot.Time.Before(span.Start) || !slot.Time.Before(span.End) {
			continue
		}
		out = append(out, SlotURL{Slot: slot, URL: e.URL})
	}
	return out, nil
}

func (f *Fetcher) inventory(ctx context.Context, rawURL string) ([]MasterEntry, error) {
	checked, err := f.hosts.CheckURL(rawURL)
	if err != nil {
		return nil, err
	}
	path, _, err := f.cache.GetOrFill(ctx, checked, diskcache.PolicyMaster, func(ctx context.Context) (io.ReadCloser, error) {
		return f.download(ctx, checked)
	})
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseInventory(file), nil
}

// parseInventory reads `size md5 url` lines, tolerating bare-URL lines
// and skipping anything else.
func parseInventory(r io.Reader) []MasterEntry {
	var out []MasterEntry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		switch len(fields) {
		case 3:
			size, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				continue
			}
			out = append(out, MasterEntry{Size: size, MD5: fields[1], URL: fields[2]})
		case 1:
			out = append(out, MasterEntry{URL: fields[0]})
		}
	}
	return out
}

// slotOf recovers the slot stamp from a file URL. With a known suffix
// the whole remaining filename must be the stamp, so a translated file
// never matches its untranslated sibling's suffix. Without one, the
// leading digit run of the final path element is taken.
func slotOf(url, suffix string) (Slot, bool) {
	name := url
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, suffix)
	digits := name
	for i, r := range name {
		if r < '0' || r > '9' {
			digits = name[:i]
			break
		}
	}
	if suffix != "" && digits != name {
		return Slot{}, false
	}
	return ParseStamp(digits)
}
