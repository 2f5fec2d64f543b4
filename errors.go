package gdelt

import "github.com/gdeltkit/gdelt-go/internal/gdelterr"

// Error kinds surfaced by the client. Always classify with errors.Is;
// the concrete errors wrap these with slot URLs, tables, and statuses.
var (
	// ErrRateLimited marks a slot or request refused with HTTP 429 after
	// retries were exhausted.
	ErrRateLimited = gdelterr.ErrRateLimited

	// ErrUpstreamUnavailable marks 5xx replies and transport failures.
	ErrUpstreamUnavailable = gdelterr.ErrUpstreamUnavailable

	// ErrBadRequest marks a request the upstream rejected, including
	// query-service replies that were not JSON.
	ErrBadRequest = gdelterr.ErrBadRequest

	// ErrAbsent marks a slot file that does not exist upstream. Fetches
	// never surface it; Probe and direct slot access may.
	ErrAbsent = gdelterr.ErrAbsent

	// ErrDecompressBomb marks an artifact that expanded past the guard
	// limits and was discarded.
	ErrDecompressBomb = gdelterr.ErrDecompressBomb

	// ErrParseMalformed marks a record that could not be decoded. Row
	// failures inside slot files never surface; this kind appears only
	// in warnings and counters.
	ErrParseMalformed = gdelterr.ErrParseMalformed

	// ErrSchemaDrift marks an upstream field no model declares.
	ErrSchemaDrift = gdelterr.ErrSchemaDrift

	// ErrUnsafeURL marks a URL outside the allowed upstream hosts.
	ErrUnsafeURL = gdelterr.ErrUnsafeURL

	// ErrUnsafePath marks a cache or credentials path escaping its root.
	ErrUnsafePath = gdelterr.ErrUnsafePath

	// ErrMissingCredentials marks warehouse access without a usable
	// project or key.
	ErrMissingCredentials = gdelterr.ErrMissingCredentials

	// ErrWarehouseFailure marks a failed warehouse query.
	ErrWarehouseFailure = gdelterr.ErrWarehouseFailure

	// ErrCancelled marks a fetch ended by context cancellation.
	ErrCancelled = gdelterr.ErrCancelled
)
