// Package diskcache persists fetched artifacts on disk with a sqlite
// manifest tracking freshness.
//
// DESIGN: Retention is decided per entry by the caller:
//   - stable: historical slots never change upstream; kept indefinitely
//   - ttl:    recent slots may still be replaced; kept briefly
//   - master: the master file index; shortest window
//
// Artifact bytes land as plain files (tmp + rename, so readers never
// see partial writes); the manifest records key, filename, policy,
// creation time and size. Expired entries are dropped lazily on access
// and wholesale by Prune. Concurrent fills of one key collapse into a
// single upstream fetch via singleflight.
package diskcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/internal/safety"
)

// Policy selects the retention rule for an entry.
type Policy string

const (
	PolicyStable Policy = "stable"
	PolicyTTL    Policy = "ttl"
	PolicyMaster Policy = "master"
)

const manifestName = "manifest.db"

const schema = `CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY NOT NULL,
	filename   TEXT NOT NULL,
	policy     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	size       INTEGER NOT NULL
)`

// Options configures a Cache.
type Options struct {
	Dir       string
	TTL       time.Duration // ttl-policy freshness window
	MasterTTL time.Duration // master-policy freshness window
	Logger    *monitoring.Logger
	Metrics   *monitoring.Metrics
}

// Cache is a disk-backed artifact cache. Safe for concurrent use.
type Cache struct {
	dir       string
	ttl       time.Duration
	masterTTL time.Duration
	db        *sql.DB
	group     singleflight.Group
	log       *monitoring.Logger
	metrics   *monitoring.Metrics
}

// New opens (creating if needed) the cache at opts.Dir.
func New(opts Options) (*Cache, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("diskcache: dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: creating %s: %w", opts.Dir, err)
	}
	log := opts.Logger
	if log == nil {
		log = monitoring.Nop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	masterTTL := opts.MasterTTL
	if masterTTL <= 0 {
		masterTTL = 5 * time.Minute
	}

	dsn := "file:" + filepath.Join(opts.Dir, manifestName) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("diskcache: opening manifest: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("diskcache: initializing manifest: %w", err)
	}

	return &Cache{
		dir:       opts.Dir,
		ttl:       ttl,
		masterTTL: masterTTL,
		db:        db,
		log:       log,
		metrics:   opts.Metrics,
	}, nil
}

// Close releases the manifest database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the on-disk path for key if a fresh entry exists. Stale
// or fileless entries are evicted and reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		filename string
		policy   string
		created  int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT filename, policy, created_at FROM entries WHERE key = ?", key).
		Scan(&filename, &policy, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("diskcache: reading manifest: %w", err)
	}

	if c.expired(Policy(policy), created) {
		c.evict(ctx, key, filename)
		return "", false, nil
	}

	path, err := safety.ResolveUnder(c.dir, filename)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); err != nil {
		// Manifest row without a file; treat as a miss.
		c.evict(ctx, key, filename)
		return "", false, nil
	}
	return path, true, nil
}

// Put streams r into the cache under key, atomically, and returns the
// final path and byte count.
func (c *Cache) Put(ctx context.Context, key string, policy Policy, r io.Reader) (string, int64, error) {
	filename := safety.CacheFilename(key)
	path, err := safety.ResolveUnder(c.dir, filename)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(c.dir, filename+".tmp-*")
	if err != nil {
		return "", 0, fmt.Errorf("diskcache: temp file: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("diskcache: writing %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("diskcache: committing %s: %w", filename, err)
	}

	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entries(key, filename, policy, created_at, size) VALUES (?, ?, ?, ?, ?)",
		key, filename, string(policy), time.Now().UnixNano(), size)
	if err != nil {
		return "", 0, fmt.Errorf("diskcache: recording %s: %w", filename, err)
	}
	return path, size, nil
}

// GetOrFill returns the cached path for key, fetching it via fill on a
// miss. Concurrent callers for the same key share one fill. The bool
// reports whether the entry came from cache without any fetch.
func (c *Cache) GetOrFill(ctx context.Context, key string, policy Policy, fill func(context.Context) (io.ReadCloser, error)) (string, bool, error) {
	path, ok, err := c.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if ok {
		c.metrics.RecordCacheHit()
		c.log.Debug().Str("key", key).Msg("cache hit")
		return path, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another goroutine may have filled this key while we waited.
		path, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return path, nil
		}

		c.metrics.RecordCacheMiss()
		c.log.Debug().Str("key", key).Msg("cache miss")
		rc, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		path, _, err = c.Put(ctx, key, policy, rc)
		if err != nil {
			return nil, err
		}
		return path, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}

// Prune removes expired entries and orphaned files; it returns how
// many files were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	type entry struct {
		key      string
		filename string
		policy   string
		created  int64
	}

	rows, err := c.db.QueryContext(ctx, "SELECT key, filename, policy, created_at FROM entries")
	if err != nil {
		return 0, fmt.Errorf("diskcache: listing manifest: %w", err)
	}
	var all []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.filename, &e.policy, &e.created); err != nil {
			rows.Close()
			return 0, fmt.Errorf("diskcache: scanning manifest: %w", err)
		}
		all = append(all, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("diskcache: listing manifest: %w", err)
	}

	removed := 0
	keep := make(map[string]bool, len(all))
	for _, e := range all {
		if c.expired(Policy(e.policy), e.created) {
			c.evict(ctx, e.key, e.filename)
			removed++
			continue
		}
		keep[e.filename] = true
	}

	// Files no manifest row references.
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return removed, fmt.Errorf("diskcache: scanning %s: %w", c.dir, err)
	}
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, manifestName) || keep[name] {
			continue
		}
		if strings.Contains(name, ".tmp-") {
			// Skip fresh temp files; a writer may still own them.
			if info, err := d.Info(); err == nil && time.Since(info.ModTime()) < time.Minute {
				continue
			}
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			c.log.Warn().Str("file", name).Err(err).Msg("removing orphan cache file")
			continue
		}
		removed++
	}

	c.log.Debug().Int("removed", removed).Msg("cache pruned")
	return removed, nil
}

// Clear drops every entry and its file; it returns how many entries
// were removed.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT key, filename FROM entries")
	if err != nil {
		return 0, fmt.Errorf("diskcache: listing manifest: %w", err)
	}
	type kv struct{ key, filename string }
	var all []kv
	for rows.Next() {
		var e kv
		if err := rows.Scan(&e.key, &e.filename); err != nil {
			rows.Close()
			return 0, fmt.Errorf("diskcache: scanning manifest: %w", err)
		}
		all = append(all, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("diskcache: listing manifest: %w", err)
	}

	for _, e := range all {
		c.evict(ctx, e.key, e.filename)
	}
	return len(all), nil
}

// Stats returns the entry count and total artifact bytes on disk.
func (c *Cache) Stats(ctx context.Context) (int, int64, error) {
	var (
		count int
		total sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size) FROM entries").Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("diskcache: sizing manifest: %w", err)
	}
	return count, total.Int64, nil
}

func (c *Cache) maxAge(p Policy) (time.Duration, bool) {
	switch p {
	case PolicyStable:
		return 0, false
	case PolicyMaster:
		return c.masterTTL, true
	default:
		return c.ttl, true
	}
}

func (c *Cache) expired(p Policy, createdNanos int64) bool {
	maxAge, expires := c.maxAge(p)
	if !expires {
		return false
	}
	return time.Since(time.Unix(0, createdNanos)) >= maxAge
}

func (c *Cache) evict(ctx context.Context, key, filename string) {
	if path, err := safety.ResolveUnder(c.dir, filename); err == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn().Str("file", filename).Err(err).Msg("evicting cache file")
		}
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("evicting manifest row")
	}
}
