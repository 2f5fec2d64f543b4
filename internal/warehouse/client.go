// Package warehouse - client.go runs statements and pages results.
//
// DESIGN: the BigQuery client hides behind the narrow Driver seam, so
// tests run the full paging path against a fake and never dial Google.
// The driver is synchronous; Rows runs it on its own goroutine and pumps
// rows through an unbuffered channel, which gives callers a lazy
// sequence with the same backpressure and early-break protocol as the
// file path. Credential files are resolved before any dial and only
// their path is ever logged, never their content.
package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/models"
)

// Driver is the slice of the warehouse client the source needs: run one
// parameterized statement, page its rows, shut down. The default is the
// BigQuery client; tests substitute fakes.
type Driver interface {
	Run(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowSource, error)
	Close() error
}

// RowSource pages one result set. Next returns iterator.Done after the
// final row.
type RowSource interface {
	Next() (map[string]bigquery.Value, error)
}

// Options configures a Client.
type Options struct {
	// ProjectID is the billing project. Required unless Driver is set.
	ProjectID string

	// Credentials is a service account key file. Relative paths resolve
	// under CredentialsDir; empty means ambient application default
	// credentials.
	Credentials    string
	CredentialsDir string

	// QueryTimeout bounds one statement end to end, zero means none.
	QueryTimeout time.Duration

	// Driver overrides the BigQuery client when set.
	Driver Driver

	Logger  *monitoring.Logger
	Metrics *monitoring.Metrics
}

// Client executes warehouse queries as lazy row sequences.
type Client struct {
	drv          Driver
	queryTimeout time.Duration
	log          *monitoring.Logger
	metrics      *monitoring.Metrics
}

// New builds a Client. Without an explicit Driver it dials BigQuery,
// resolving credentials first so a bad key path fails here and not mid
// fetch.
func New(ctx context.Context, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = monitoring.Nop()
	}
	log = log.Component("warehouse")

	c := &Client{
		drv:          opts.Driver,
		queryTimeout: opts.QueryTimeout,
		log:          log,
		metrics:      opts.Metrics,
	}
	if c.drv != nil {
		return c, nil
	}

	if opts.ProjectID == "" {
		return nil, fmt.Errorf("%w: warehouse project id is not configured", gdelterr.ErrMissingCredentials)
	}
	key, err := resolveKeyFile(opts.CredentialsDir, opts.Credentials)
	if err != nil {
		return nil, err
	}
	var copts []option.ClientOption
	if key != "" {
		copts = append(copts, option.WithCredentialsFile(key))
		log.Info().Str("path", key).Msg("using service account key file")
	} else {
		log.Debug().Msg("using application default credentials")
	}
	bq, err := bigquery.NewClient(ctx, opts.ProjectID, copts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gdelterr.ErrMissingCredentials, err)
	}
	c.drv = &bqDriver{client: bq}
	return c, nil
}

// Close shuts the driver down.
func (c *Client) Close() error {
	return c.drv.Close()
}

// resolveKeyFile turns a configured credentials path into a checked
// absolute path. Traversal segments are rejected outright; relative
// paths resolve under the allowed parent, defaulting to ~/.gdelt.
func resolveKeyFile(dir, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: credentials path %q contains traversal", gdelterr.ErrUnsafePath, path)
		}
	}
	resolved := filepath.Clean(path)
	if !filepath.IsAbs(path) {
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolving credentials dir: %w", err)
			}
			dir = filepath.Join(home, ".gdelt")
		}
		r, err := safety.ResolveUnder(dir, path)
		if err != nil {
			return "", err
		}
		resolved = r
	}
	st, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: key file %s: %v", gdelterr.ErrMissingCredentials, resolved, err)
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("%w: key file %s is not a regular file", gdelterr.ErrMissingCredentials, resolved)
	}
	return resolved, nil
}

// Rows runs the statement and yields one raw record per result row. The
// driver runs off the caller's goroutine; breaking out of the loop
// cancels the query and waits for the pump to stop.
func (c *Client) Rows(ctx context.Context, q *Query) iter.Seq2[models.Raw, error] {
	return func(yield func(models.Raw, error) bool) {
		if err := q.validate(); err != nil {
			yield(models.Raw{}, err)
			return
		}

		runCtx := ctx
		var cancel context.CancelFunc
		if c.queryTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		} else {
			runCtx, cancel = context.WithCancel(ctx)
		}
		defer cancel()

		// Rows travel the channel; the terminal error rides pumpErr,
		// sequenced by the close, so it can never be lost to a
		// cancellation race at the send.
		out := make(chan models.Raw)
		var pumpErr error
		go func() {
			defer close(out)
			start := time.Now()
			c.log.Debug().Str("table", q.Table()).Int("params", len(q.Parameters())).Msg("warehouse query")
			src, err := c.drv.Run(runCtx, q.SQL(), q.Parameters())
			if err != nil {
				c.metrics.RecordWarehouseQuery(monitoring.OutcomeFailed)
				pumpErr = classify(q, err)
				return
			}
			n := 0
			for {
				row, err := src.Next()
				if errors.Is(err, iterator.Done) {
					break
				}
				if err != nil {
					c.metrics.RecordWarehouseQuery(monitoring.OutcomeFailed)
					pumpErr = classify(q, err)
					return
				}
				n++
				select {
				case out <- rowToRaw(row):
				case <-runCtx.Done():
					pumpErr = classify(q, runCtx.Err())
					return
				}
			}
			c.metrics.RecordWarehouseQuery(monitoring.OutcomeOK)
			c.log.Debug().Str("table", q.Table()).Int("rows", n).
				Dur("elapsed", time.Since(start)).Msg("warehouse query done")
		}()

		for raw := range out {
			if !yield(raw, nil) {
				cancel()
				for range out {
				}
				return
			}
		}
		if pumpErr != nil {
			yield(models.Raw{}, pumpErr)
		}
	}
}

// classify maps a driver error onto the shared kinds. Caller
// cancellation stays cancellation; everything else, the query timeout
// included, is a warehouse failure and never triggers further fallback.
func classify(q *Query, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", gdelterr.ErrCancelled, q.Table(), err)
	}
	return fmt.Errorf("%w: %s: %v", gdelterr.ErrWarehouseFailure, q.Table(), err)
}

func rowToRaw(row map[string]bigquery.Value) models.Raw {
	fields := make(map[string]string, len(row))
	for name, v := range row {
		if s, ok := cellString(v); ok {
			fields[name] = s
		}
	}
	return models.Raw{Fields: fields}
}

// cellString renders one cell the way the file parsers would have:
// integers and floats in plain decimal, booleans as 0/1, timestamps as
// packed stamps, and nested values re-encoded as JSON so the graph
// constructors can decode them the same as JSON-lines input. NULL
// reports absent.
func cellString(v bigquery.Value) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case time.Time:
		return x.UTC().Format("20060102150405"), true
	case []byte:
		return string(x), true
	case []bigquery.Value, map[string]bigquery.Value:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return fmt.Sprint(x), true
	}
}

// bqDriver is the production Driver over the BigQuery client.
type bqDriver struct {
	client *bigquery.Client
}

func (d *bqDriver) Run(ctx context.Context, sql string, params []bigquery.QueryParameter) (RowSource, error) {
	q := d.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	return &bqRows{it: it}, nil
}

func (d *bqDriver) Close() error { return d.client.Close() }

type bqRows struct {
	it *bigquery.RowIterator
}

func (r *bqRows) Next() (map[string]bigquery.Value, error) {
	var row map[string]bigquery.Value
	if err := r.it.Next(&row); err != nil {
		return nil, err
	}
	return row, nil
}
