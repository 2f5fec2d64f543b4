package monitoring_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/gdeltkit/gdelt-go/internal/monitoring"
)

func logLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdelt.log")
	l := monitoring.New(monitoring.LoggerConfig{Level: "debug", Output: path})

	l.Info().Str("slot", "20240115001500").Msg("slot fetched")

	lines := logLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", gjson.Get(lines[0], "level").String())
	assert.Equal(t, "slot fetched", gjson.Get(lines[0], "message").String())
	assert.Equal(t, "20240115001500", gjson.Get(lines[0], "slot").String())
	assert.NotEmpty(t, gjson.Get(lines[0], "time").String())
}

func TestLoggerComponentField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdelt.log")
	l := monitoring.New(monitoring.LoggerConfig{Level: "info", Output: path})

	l.Info().Msg("parent")
	l.Component("diskcache").Info().Msg("child")

	lines := logLines(t, path)
	require.Len(t, lines, 2)
	assert.False(t, gjson.Get(lines[0], "comp").Exists())
	assert.Equal(t, "diskcache", gjson.Get(lines[1], "comp").String())
}

func TestLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdelt.log")
	l := monitoring.New(monitoring.LoggerConfig{Level: "verbose", Output: path})

	l.Debug().Msg("hidden")
	l.Info().Msg("visible")

	lines := logLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", gjson.Get(lines[0], "message").String())
}

func TestLoggerConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdelt.log")
	l := monitoring.New(monitoring.LoggerConfig{Level: "info", Format: "console", Output: path})

	l.Info().Msg("hello")

	lines := logLines(t, path)
	require.Len(t, lines, 1)
	assert.False(t, strings.HasPrefix(lines[0], "{"))
	assert.Contains(t, lines[0], "INF")
	assert.Contains(t, lines[0], "hello")
}

func TestLoggerNop(t *testing.T) {
	l := monitoring.Nop()
	l.Error().Str("k", "v").Msg("discarded")
	l.Component("safety").Warn().Msg("discarded")
}

func TestGlobalSetsProcessLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	path := filepath.Join(t.TempDir(), "gdelt.log")
	monitoring.Global(monitoring.LoggerConfig{Level: "info", Output: path})

	log.Info().Msg("routed")

	lines := logLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "routed", gjson.Get(lines[0], "message").String())
}

func TestLeveledAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdelt.log")
	l := monitoring.New(monitoring.LoggerConfig{Level: "debug", Output: path})
	lv := l.Leveled()

	lv.Warn("retrying request", "url", "https://example.com", "attempt", 2)
	lv.Error("request failed", "url")

	lines := logLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", gjson.Get(lines[0], "level").String())
	assert.Equal(t, "https://example.com", gjson.Get(lines[0], "url").String())
	assert.Equal(t, int64(2), gjson.Get(lines[0], "attempt").Int())

	// Odd trailing key has no value to pair with and is dropped.
	assert.Equal(t, "request failed", gjson.Get(lines[1], "message").String())
	assert.False(t, gjson.Get(lines[1], "url").Exists())
}

func TestRequestIDContext(t *testing.T) {
	assert.Empty(t, monitoring.RequestIDFromContext(context.Background()))

	ctx := monitoring.WithRequestIDContext(context.Background(), "req-123")
	assert.Equal(t, "req-123", monitoring.RequestIDFromContext(ctx))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						matched = true
						break
					}
				}
				if !matched {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestMetricsDownloadOutcomes(t *testing.T) {
	m := monitoring.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.RecordDownload("events", monitoring.OutcomeOK, 1024, 50*time.Millisecond)
	m.RecordDownload("events", monitoring.OutcomeAbsent, 0, 0)
	m.RecordDownload("gkg", monitoring.OutcomeFailed, 0, 0)

	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_downloads_total", map[string]string{"type": "events", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_downloads_total", map[string]string{"type": "events", "outcome": "absent"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_downloads_total", map[string]string{"type": "gkg", "outcome": "failed"}))

	// Bytes and latency only accumulate for successful downloads.
	assert.Equal(t, 1024.0, counterValue(t, reg, "gdelt_download_bytes_total", map[string]string{"type": "events"}))
	assert.Equal(t, -1.0, counterValue(t, reg, "gdelt_download_bytes_total", map[string]string{"type": "gkg"}))

	histograms, err := testutil.GatherAndCount(reg, "gdelt_download_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, histograms)
}

func TestMetricsCountersAccumulate(t *testing.T) {
	m := monitoring.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordRetry()
	m.RecordFallback()
	m.RecordParseWarning("gkg")
	m.RecordSchemaDrift("geg")
	m.RecordWarehouseQuery("ok")

	assert.Equal(t, 2.0, counterValue(t, reg, "gdelt_cache_hits_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_cache_misses_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_retries_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_fallbacks_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_parse_warnings_total", map[string]string{"type": "gkg"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_schema_drift_total", map[string]string{"type": "geg"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gdelt_warehouse_queries_total", map[string]string{"outcome": "ok"}))
}

func TestMetricsRegisterTwice(t *testing.T) {
	m := monitoring.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *monitoring.Metrics
	require.NoError(t, m.Register(prometheus.NewRegistry()))
	m.RecordDownload("events", monitoring.OutcomeOK, 1, time.Second)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordRetry()
	m.RecordFallback()
	m.RecordParseWarning("events")
	m.RecordSchemaDrift("events")
	m.RecordWarehouseQuery("failed")
}
