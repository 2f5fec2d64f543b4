package diskcache_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gdeltkit/gdelt-go/internal/diskcache"
)

func newCache(t *testing.T, opts diskcache.Options) *diskcache.Cache {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	c, err := diskcache.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func fill(content string) func(context.Context) (io.ReadCloser, error) {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newCache(t, diskcache.Options{})
	ctx := context.Background()

	path, size, err := c.Put(ctx, "https://data.gdeltproject.org/gdeltv2/20240115001500.export.CSV.zip",
		diskcache.PolicyStable, strings.NewReader("zip-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)

	got, ok, err := c.Get(ctx, "https://data.gdeltproject.org/gdeltv2/20240115001500.export.CSV.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, path, got)

	raw, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(raw))
}

func TestGetMissing(t *testing.T) {
	c := newCache(t, diskcache.Options{})

	_, ok, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := newCache(t, diskcache.Options{TTL: 30 * time.Millisecond})
	ctx := context.Background()

	path, _, err := c.Put(ctx, "recent-slot", diskcache.PolicyTTL, strings.NewReader("x"))
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "recent-slot")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	_, ok, err = c.Get(ctx, "recent-slot")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, path)
}

func TestStableNeverExpires(t *testing.T) {
	c := newCache(t, diskcache.Options{TTL: 10 * time.Millisecond, MasterTTL: 10 * time.Millisecond})
	ctx := context.Background()

	_, _, err := c.Put(ctx, "old-slot", diskcache.PolicyStable, strings.NewReader("x"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, "old-slot")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMasterTTL(t *testing.T) {
	c := newCache(t, diskcache.Options{TTL: time.Hour, MasterTTL: 30 * time.Millisecond})
	ctx := context.Background()

	_, _, err := c.Put(ctx, "masterfilelist", diskcache.PolicyMaster, strings.NewReader("x"))
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	_, ok, err := c.Get(ctx, "masterfilelist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOrFillFetchesOnce(t *testing.T) {
	c := newCache(t, diskcache.Options{})
	ctx := context.Background()

	var calls atomic.Int32
	counted := func(ctx context.Context) (io.ReadCloser, error) {
		calls.Add(1)
		return fill("artifact")(ctx)
	}

	path1, hit, err := c.GetOrFill(ctx, "slot-a", diskcache.PolicyStable, counted)
	require.NoError(t, err)
	assert.False(t, hit)

	path2, hit, err := c.GetOrFill(ctx, "slot-a", diskcache.PolicyStable, counted)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, path1, path2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFillCollapsesConcurrentFills(t *testing.T) {
	c := newCache(t, diskcache.Options{})
	ctx := context.Background()

	var calls atomic.Int32
	slow := func(context.Context) (io.ReadCloser, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return io.NopCloser(strings.NewReader("artifact")), nil
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, _, err := c.GetOrFill(ctx, "slot-b", diskcache.PolicyStable, slow)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFillErrorDoesNotCache(t *testing.T) {
	c := newCache(t, diskcache.Options{})
	ctx := context.Background()

	errBoom := errors.New("upstream down")
	_, _, err := c.GetOrFill(ctx, "slot-c", diskcache.PolicyStable,
		func(context.Context) (io.ReadCloser, error) { return nil, errBoom })
	require.ErrorIs(t, err, errBoom)

	// The failed fill left nothing behind; the next call fetches again.
	_, hit, err := c.GetOrFill(ctx, "slot-c", diskcache.PolicyStable, fill("artifact"))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestManifestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := diskcache.New(diskcache.Options{Dir: dir})
	require.NoError(t, err)
	_, _, err = c.Put(ctx, "slot-d", diskcache.PolicyStable, strings.NewReader("persisted"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2 := newCache(t, diskcache.Options{Dir: dir})
	path, ok, err := c2.Get(ctx, "slot-d")
	require.NoError(t, err)
	require.True(t, ok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(raw))
}

func TestMissingFileCountsAsMiss(t *testing.T) {
	c := newCache(t, diskcache.Options{})
	ctx := context.Background()

	path, _, err := c.Put(ctx, "slot-e", diskcache.PolicyStable, strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, ok, err := c.Get(ctx, "slot-e")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t, diskcache.Options{Dir: dir, TTL: 30 * time.Millisecond})
	ctx := context.Background()

	stalePath, _, err := c.Put(ctx, "stale", diskcache.PolicyTTL, strings.NewReader("x"))
	require.NoError(t, err)
	freshPath, _, err := c.Put(ctx, "fresh", diskcache.PolicyStable, strings.NewReader("x"))
	require.NoError(t, err)

	orphan := filepath.Join(dir, "orphan.bin")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))
	freshTmp := filepath.Join(dir, "partial.tmp-123")
	require.NoError(t, os.WriteFile(freshTmp, []byte("x"), 0o644))

	time.Sleep(80 * time.Millisecond)

	removed, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoFileExists(t, stalePath)
	assert.NoFileExists(t, orphan)
	assert.FileExists(t, freshPath)
	assert.FileExists(t, freshTmp, "recent temp files belong to in-flight writers")
}

func TestClearAndStats(t *testing.T) {
	c := newCache(t, diskcache.Options{})
	ctx := context.Background()

	_, _, err := c.Put(ctx, "a", diskcache.PolicyStable, strings.NewReader("12345"))
	require.NoError(t, err)
	_, _, err = c.Put(ctx, "b", diskcache.PolicyStable, strings.NewReader("1234567890"))
	require.NoError(t, err)

	count, bytes, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(15), bytes)

	cleared, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	count, bytes, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, bytes)
}
