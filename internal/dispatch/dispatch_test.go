package dispatch_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/internal/config"
	"github.com/gdeltkit/gdelt-go/internal/diskcache"
	"github.com/gdeltkit/gdelt-go/internal/dispatch"
	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/internal/slotfiles"
	"github.com/gdeltkit/gdelt-go/internal/warehouse"
	"github.com/gdeltkit/gdelt-go/models"
)

func spanOf(nSlots int) filters.Span {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return filters.NewSpan(start, start.Add(time.Duration(nSlots)*15*time.Minute))
}

func zipBytes(name string, content []byte) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create(name)
	w.Write(content)
	zw.Close()
	return buf.Bytes()
}

// eventRow builds one events TSV row with the given id and blanks
// elsewhere.
func eventRow(id string) string {
	cols := make([]string, 61)
	cols[0] = id
	cols[1] = "20240115"
	return strings.Join(cols, "\t")
}

func mentionRow(id string) string {
	cols := make([]string, 16)
	cols[0] = id
	return strings.Join(cols, "\t")
}

func newFiles(t *testing.T, srvURL string) *slotfiles.Fetcher {
	t.Helper()
	cache, err := diskcache.New(diskcache.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	hosts, err := safety.NewHosts(srvURL)
	require.NoError(t, err)

	f := slotfiles.NewFetcher(slotfiles.Options{
		HTTP: config.HTTPConfig{
			Timeout:     config.Duration(10 * time.Second),
			FileBaseURL: srvURL,
		},
		Cache: cache,
		Hosts: hosts,
	})
	t.Cleanup(f.Close)
	return f
}

// fakeDriver serves canned warehouse rows and remembers whether any
// query ever reached it.
type fakeDriver struct {
	rows []map[string]bigquery.Value

	mu  sync.Mutex
	sql string
}

func (d *fakeDriver) Run(_ context.Context, sql string, _ []bigquery.QueryParameter) (warehouse.RowSource, error) {
	d.mu.Lock()
	d.sql = sql
	d.mu.Unlock()
	return &fakeRows{rows: d.rows}, nil
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) ran() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sql != ""
}

type fakeRows struct {
	rows []map[string]bigquery.Value
	i    int
}

func (r *fakeRows) Next() (map[string]bigquery.Value, error) {
	if r.i >= len(r.rows) {
		return nil, iterator.Done
	}
	row := r.rows[r.i]
	r.i++
	return row, nil
}

func newDispatcher(t *testing.T, files *slotfiles.Fetcher, drv warehouse.Driver, fallback bool) *dispatch.Dispatcher {
	t.Helper()
	opts := dispatch.Options{Files: files, Fallback: fallback}
	if drv != nil {
		wh, err := warehouse.New(context.Background(), warehouse.Options{Driver: drv})
		require.NoError(t, err)
		opts.Warehouse = wh
		t.Cleanup(func() { _ = wh.Close() })
	}
	return dispatch.New(opts)
}

func collect(r *dispatch.Run) ([]models.Raw, []error) {
	var raws []models.Raw
	var errs []error
	for raw, err := range r.Seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		raws = append(raws, raw)
	}
	return raws, errs
}

func TestFilesServeParsedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "20240115000000") {
			w.Write(zipBytes("20240115000000.export.CSV", []byte(eventRow("610")+"\n")))
			return
		}
		w.Write(zipBytes("20240115001500.export.CSV", []byte(eventRow("611")+"\n")))
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{Span: spanOf(2)}})

	raws, errs := collect(run)
	require.Empty(t, errs)
	require.Len(t, raws, 2)
	var ids []string
	for _, raw := range raws {
		require.Len(t, raw.Cols, 61)
		ids = append(ids, raw.Cols[0])
	}
	// Completion order is not slot order.
	assert.ElementsMatch(t, []string{"610", "611"}, ids)
	assert.Equal(t, filters.SourceFiles, run.Source())
	assert.Empty(t, run.Failures())
	assert.False(t, run.FellBack())
}

func TestRateLimitFallsBackToWarehouse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	drv := &fakeDriver{rows: []map[string]bigquery.Value{
		{"GLOBALEVENTID": int64(900), "EventCode": "0251"},
		{"GLOBALEVENTID": int64(901), "EventCode": "0251"},
	}}
	d := newDispatcher(t, newFiles(t, srv.URL), drv, true)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{Span: spanOf(2)}})

	raws, errs := collect(run)
	require.Empty(t, errs)
	require.Len(t, raws, 2)
	assert.Equal(t, "900", raws[0].Fields["GLOBALEVENTID"])
	assert.Equal(t, "0251", raws[0].Fields["EventCode"])
	assert.Equal(t, "901", raws[1].Fields["GLOBALEVENTID"])

	assert.True(t, run.FellBack())
	assert.Equal(t, filters.SourceWarehouse, run.Source())
	assert.True(t, drv.ran())

	// The switch happens on the first observed failure; later results
	// are drained, not recorded.
	require.Len(t, run.Failures(), 1)
	fl := run.Failures()[0]
	assert.ErrorIs(t, fl.Err, gdelterr.ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, fl.Status)
	assert.Equal(t, 7*time.Second, fl.RetryAfter)
	assert.Contains(t, fl.URL, "/gdeltv2/")
	assert.Len(t, fl.Stamp, 14)
}

func TestForcedFilesNeverFallBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	drv := &fakeDriver{}
	d := newDispatcher(t, newFiles(t, srv.URL), drv, true)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{
		Span:   spanOf(2),
		Source: filters.SourceFiles,
	}})

	raws, errs := collect(run)
	assert.Empty(t, raws)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], gdelterr.ErrRateLimited)
	assert.False(t, run.FellBack())
	assert.Equal(t, filters.SourceFiles, run.Source())
	assert.False(t, drv.ran())
}

func TestNoWarehouseMeansPolicyDecides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, true)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{
		Span:    spanOf(2),
		OnError: filters.ErrorWarn,
	}})

	raws, errs := collect(run)
	assert.Empty(t, raws)
	assert.Empty(t, errs)
	assert.False(t, run.FellBack())
	assert.Len(t, run.Failures(), 2)
}

func TestWarnAndSkipPoliciesContinue(t *testing.T) {
	for _, policy := range []filters.ErrorPolicy{filters.ErrorWarn, filters.ErrorSkip} {
		t.Run(string(policy), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.Contains(r.URL.Path, "20240115000000") {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Write(zipBytes("20240115001500.export.CSV", []byte(eventRow("611")+"\n")))
			}))
			defer srv.Close()

			d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
			run := d.Events(context.Background(), filters.Events{Common: filters.Common{
				Span:    spanOf(2),
				OnError: policy,
			}})

			raws, errs := collect(run)
			require.Empty(t, errs)
			require.Len(t, raws, 1)
			assert.Equal(t, "611", raws[0].Cols[0])
			require.Len(t, run.Failures(), 1)
			fl := run.Failures()[0]
			assert.ErrorIs(t, fl.Err, gdelterr.ErrUpstreamUnavailable)
			assert.Equal(t, http.StatusInternalServerError, fl.Status)
		})
	}
}

func TestRaiseIsTheDefaultPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "20240115000000") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(zipBytes("20240115001500.export.CSV", []byte(eventRow("611")+"\n")))
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{Span: spanOf(2)}})

	_, errs := collect(run)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], gdelterr.ErrUpstreamUnavailable)
	require.Len(t, run.Failures(), 1)
}

func TestAbsentSlotsAreNotFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "20240115000000") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(zipBytes("20240115001500.export.CSV", []byte(eventRow("611")+"\n")))
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{Span: spanOf(2)}})

	raws, errs := collect(run)
	require.Empty(t, errs)
	require.Len(t, raws, 1)
	assert.Empty(t, run.Failures())
}

func TestBombNeverTriggersFallback(t *testing.T) {
	bomb := zipBytes("20240115000000.export.CSV", make([]byte, 20<<20))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bomb)
	}))
	defer srv.Close()

	drv := &fakeDriver{rows: []map[string]bigquery.Value{{"GLOBALEVENTID": int64(1)}}}
	d := newDispatcher(t, newFiles(t, srv.URL), drv, true)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{
		Span:    spanOf(2),
		OnError: filters.ErrorWarn,
	}})

	raws, errs := collect(run)
	assert.Empty(t, raws)
	assert.Empty(t, errs)
	assert.False(t, run.FellBack())
	assert.False(t, drv.ran())
	require.Len(t, run.Failures(), 2)
	for _, fl := range run.Failures() {
		assert.ErrorIs(t, fl.Err, gdelterr.ErrDecompressBomb)
	}
}

func TestTranslatedEventsDoNotArmFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	drv := &fakeDriver{}
	d := newDispatcher(t, newFiles(t, srv.URL), drv, true)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{
		Span:       spanOf(2),
		OnError:    filters.ErrorWarn,
		Translated: true,
	}})

	raws, errs := collect(run)
	assert.Empty(t, raws)
	assert.Empty(t, errs)
	assert.False(t, run.FellBack())
	assert.False(t, drv.ran())
	assert.Len(t, run.Failures(), 2)
}

func TestMentionsAutoPrefersWarehouse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	drv := &fakeDriver{rows: []map[string]bigquery.Value{
		{"GLOBALEVENTID": int64(900), "MentionIdentifier": "https://example.com/a"},
	}}
	d := newDispatcher(t, newFiles(t, srv.URL), drv, false)
	run := d.Mentions(context.Background(), filters.Mentions{
		Common:   filters.Common{Span: spanOf(2)},
		EventIDs: []int64{900},
	})

	raws, errs := collect(run)
	require.Empty(t, errs)
	require.Len(t, raws, 1)
	assert.Equal(t, "900", raws[0].Fields["GLOBALEVENTID"])
	assert.Equal(t, filters.SourceWarehouse, run.Source())
	assert.Zero(t, hits.Load())
}

func TestMentionsWithoutWarehouseUseFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes("mentions.CSV", []byte(mentionRow("900")+"\n")))
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	run := d.Mentions(context.Background(), filters.Mentions{
		Common:   filters.Common{Span: spanOf(2)},
		EventIDs: []int64{900},
	})

	raws, errs := collect(run)
	require.Empty(t, errs)
	require.Len(t, raws, 2)
	assert.Equal(t, filters.SourceFiles, run.Source())
}

func TestForcedWarehouseWithoutProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{
		Span:   spanOf(2),
		Source: filters.SourceWarehouse,
	}})

	raws, errs := collect(run)
	assert.Empty(t, raws)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], gdelterr.ErrMissingCredentials)
}

func TestForcedWarehouseFileOnlyDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), &fakeDriver{}, false)
	run := d.VGKG(context.Background(), filters.VGKG{Common: filters.Common{
		Span:   spanOf(2),
		Source: filters.SourceWarehouse,
	}})

	raws, errs := collect(run)
	assert.Empty(t, raws)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "no partitioned warehouse table")
}

func TestForTypeCoversEveryDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	types := []models.RecordType{
		models.TypeEvents, models.TypeMentions, models.TypeGKG,
		models.TypeVGKG, models.TypeTVGKG,
		models.TypeWebNGrams, models.TypeBroadcastNGrams,
	}
	types = append(types, models.GraphTypes()...)
	for _, rt := range types {
		run, err := d.ForType(context.Background(), rt, filters.Common{Span: spanOf(2)})
		require.NoError(t, err, "type %s", rt)
		require.NotNil(t, run.Seq, "type %s", rt)
	}

	_, err := d.ForType(context.Background(), models.RecordType("almanac"), filters.Common{Span: spanOf(2)})
	require.Error(t, err)
}

func TestEarlyBreakStopsStreaming(t *testing.T) {
	body := []byte(eventRow("610") + "\n" + eventRow("611") + "\n" + eventRow("612") + "\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes("slot.CSV", body))
	}))
	defer srv.Close()

	d := newDispatcher(t, newFiles(t, srv.URL), nil, false)
	run := d.Events(context.Background(), filters.Events{Common: filters.Common{Span: spanOf(8)}})

	n := 0
	for _, err := range run.Seq {
		require.NoError(t, err)
		if n++; n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
