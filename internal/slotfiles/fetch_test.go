package slotfiles_test

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/internal/config"
	"github.com/gdeltkit/gdelt-go/internal/diskcache"
	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/internal/slotfiles"
	"github.com/gdeltkit/gdelt-go/models"
)

func newFetcher(t *testing.T, srvURL string, mut func(*slotfiles.Options)) *slotfiles.Fetcher {
	t.Helper()
	cache, err := diskcache.New(diskcache.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	hosts, err := safety.NewHosts(srvURL)
	require.NoError(t, err)

	opts := slotfiles.Options{
		HTTP: config.HTTPConfig{
			Timeout:     config.Duration(10 * time.Second),
			MaxRetries:  2,
			FileBaseURL: srvURL,
		},
		Cache: cache,
		Hosts: hosts,
	}
	if mut != nil {
		mut(&opts)
	}
	f := slotfiles.NewFetcher(opts)
	t.Cleanup(f.Close)
	return f
}

func slotAt(hour, min int) slotfiles.Slot {
	return slotfiles.Slot{Time: time.Date(2024, 1, 15, hour, min, 0, 0, time.UTC)}
}

// Fixture builders run inside handlers, so they cannot use require.
func zipBytes(name string, content []byte) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create(name)
	w.Write(content)
	zw.Close()
	return buf.Bytes()
}

func gzipBytes(content []byte) []byte {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(content)
	gw.Close()
	return buf.Bytes()
}

func TestFetchExtractsZip(t *testing.T) {
	content := []byte("610\t20240115\tUSA\n611\t20240115\tFRA\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes("20240115000000.export.CSV", content))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	art, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.NoError(t, err)
	assert.Equal(t, content, art.Body)
	assert.Equal(t, su.URL, art.URL)
	assert.Equal(t, "20240115000000", art.Slot.Stamp())
}

func TestFetchExtractsGzip(t *testing.T) {
	content := []byte(`{"date":"20240115000000","ngram":"climate"}` + "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipBytes(content))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv3/webngrams/20240115000000.webngrams.json.gz"}
	art, err := f.Fetch(context.Background(), models.TypeWebNGrams, su)
	require.NoError(t, err)
	assert.Equal(t, content, art.Body)
}

func TestFetchAbsentSlot(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	art, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.True(t, gdelterr.IsAbsent(err))
	assert.Nil(t, art.Body)
	assert.Equal(t, int32(1), hits.Load(), "absent slots are not retried")
}

func TestFetchRateLimitedAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	_, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.ErrorIs(t, err, gdelterr.ErrRateLimited)

	var se *gdelterr.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, int32(3), hits.Load(), "initial attempt plus two retries")
}

func TestFetchUpstreamErrorAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	_, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.ErrorIs(t, err, gdelterr.ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchBadRequestNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	_, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.ErrorIs(t, err, gdelterr.ErrBadRequest)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRejectsForeignHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: "https://attacker.example/gdeltv2/20240115000000.export.CSV.zip"}
	_, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.ErrorIs(t, err, gdelterr.ErrUnsafeURL)
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetchRejectsMultiEntryArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w1, _ := zw.Create("a.CSV")
		w1.Write([]byte("one"))
		w2, _ := zw.Create("b.CSV")
		w2.Write([]byte("two"))
		zw.Close()
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	art, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entries")
	assert.False(t, gdelterr.IsAbsent(err))
	assert.Nil(t, art.Body)
}

func TestFetchStopsDecompressionBomb(t *testing.T) {
	// 20 MB of zeros deflates to a few KB, far past the 100:1 cap.
	bomb := zipBytes("bomb.CSV", make([]byte, 20<<20))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bomb)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}
	_, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.Error(t, err)
	assert.ErrorIs(t, err, gdelterr.ErrDecompressBomb)
}

func TestFetchCachesArtifacts(t *testing.T) {
	var hits atomic.Int32
	content := []byte("row\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(zipBytes("x.CSV", content))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	su := slotfiles.SlotURL{Slot: slotAt(0, 0), URL: srv.URL + "/gdeltv2/20240115000000.export.CSV.zip"}

	first, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), models.TypeEvents, su)
	require.NoError(t, err)

	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), hits.Load(), "second fetch reads the cache")
}

func TestFetchHonorsLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes("x.CSV", []byte("row\n")))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, func(o *slotfiles.Options) {
		o.Limiter = rate.NewLimiter(rate.Every(30*time.Millisecond), 1)
	})

	start := time.Now()
	for _, stamp := range []string{"20240115000000", "20240115001500", "20240115003000"} {
		slot, ok := slotfiles.ParseStamp(stamp)
		require.True(t, ok)
		su := slotfiles.SlotURL{Slot: slot, URL: srv.URL + "/gdeltv2/" + stamp + ".export.CSV.zip"}
		_, err := f.Fetch(context.Background(), models.TypeEvents, su)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func streamSpan(nSlots int) filters.Span {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return filters.NewSpan(start, start.Add(time.Duration(nSlots)*15*time.Minute))
}

func collect(t *testing.T, f *slotfiles.Fetcher, typ models.RecordType, urls iter.Seq[slotfiles.SlotURL]) ([]slotfiles.Artifact, []error) {
	t.Helper()
	var (
		arts []slotfiles.Artifact
		errs []error
	)
	for art, err := range f.Stream(context.Background(), typ, urls) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		arts = append(arts, art)
	}
	return arts, errs
}

func TestStreamSkipsAbsentSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "20240115000000") {
			w.Write(zipBytes("x.CSV", []byte("a\nb\n")))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	urls, err := slotfiles.URLs(srv.URL, models.TypeEvents, streamSpan(2), false)
	require.NoError(t, err)

	arts, errs := collect(t, f, models.TypeEvents, urls)
	assert.Len(t, arts, 1)
	assert.Empty(t, errs, "a missing slot is not a failure")
}

func TestStreamReportsFailedSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "20240115000000") {
			w.Write(zipBytes("x.CSV", []byte("a\n")))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	urls, err := slotfiles.URLs(srv.URL, models.TypeEvents, streamSpan(2), false)
	require.NoError(t, err)

	arts, errs := collect(t, f, models.TypeEvents, urls)
	assert.Len(t, arts, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], gdelterr.ErrBadRequest)
}

func TestStreamBoundsInFlightDownloads(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		w.Write(zipBytes("x.CSV", []byte(r.URL.Path+"\n")))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, func(o *slotfiles.Options) {
		o.HTTP.MaxConcurrency = 3
	})
	urls, err := slotfiles.URLs(srv.URL, models.TypeEvents, streamSpan(24), false)
	require.NoError(t, err)

	n := 0
	for _, err := range f.Stream(context.Background(), models.TypeEvents, urls) {
		require.NoError(t, err)
		n++
		time.Sleep(5 * time.Millisecond) // a slow caller must not raise residency
	}
	assert.Equal(t, 24, n)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestStreamEarlyBreakStopsDownloads(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Write(zipBytes("x.CSV", []byte("row\n")))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, func(o *slotfiles.Options) {
		o.HTTP.MaxConcurrency = 2
	})
	urls, err := slotfiles.URLs(srv.URL, models.TypeEvents, streamSpan(96), false)
	require.NoError(t, err)

	for _, err := range f.Stream(context.Background(), models.TypeEvents, urls) {
		require.NoError(t, err)
		break
	}

	settled := hits.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, settled, hits.Load(), "no new downloads after the caller walks away")
	assert.Less(t, settled, int32(10))
}

func TestMasterList(t *testing.T) {
	body := strings.Join([]string{
		"145668 2a3b4c http://data.gdeltproject.org/gdeltv2/20240115000000.export.CSV.zip",
		"98231 5d6e7f http://data.gdeltproject.org/gdeltv2/20240115000000.mentions.CSV.zip",
		"not a valid line at all extra",
		"1 a b c",
	}, "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gdeltv2/masterfilelist.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	entries, err := f.MasterList(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(145668), entries[0].Size)
	assert.Equal(t, "2a3b4c", entries[0].MD5)
	assert.Equal(t, "http://data.gdeltproject.org/gdeltv2/20240115000000.export.CSV.zip", entries[0].URL)
}

func TestListAvailableFiltersByTypeAndSpan(t *testing.T) {
	body := strings.Join([]string{
		"1 a http://data.gdeltproject.org/gdeltv2/20240115000000.export.CSV.zip",
		"1 a http://data.gdeltproject.org/gdeltv2/20240115001500.export.CSV.zip",
		"1 a http://data.gdeltproject.org/gdeltv2/20240115004500.export.CSV.zip",
		"1 a http://data.gdeltproject.org/gdeltv2/20240115000000.gkg.csv.zip",
		"1 a http://data.gdeltproject.org/gdeltv2/20240115000000.translation.export.CSV.zip",
	}, "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	span := filters.NewSpan(
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC),
	)
	got, err := f.ListAvailable(context.Background(), models.TypeEvents, span, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "20240115000000", got[0].Slot.Stamp())
	assert.Equal(t, "20240115001500", got[1].Slot.Stamp())
	for _, su := range got {
		assert.NotContains(t, su.URL, ".translation.")
		assert.NotContains(t, su.URL, ".gkg.")
	}
}

func TestListAvailableBroadcastInventory(t *testing.T) {
	body := strings.Join([]string{
		"http://data.gdeltproject.org/gdeltv3/iatv/ngrams/20240115120000.CNN.ngrams.txt.gz",
		"http://data.gdeltproject.org/gdeltv3/iatv/ngrams/20240116120000.BBCNEWS.ngrams.txt.gz",
	}, "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gdeltv3/iatv/ngrams/masterfilelist.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, nil)
	span := filters.NewSpan(
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	)
	got, err := f.ListAvailable(context.Background(), models.TypeBroadcastNGrams, span, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].URL, "CNN")
	assert.Equal(t, "20240115120000", got[0].Slot.Stamp())
}
