// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UsageStore persists the append-only quota ledger. This core only appends
// and reads aggregates; retention and analytics belong to the owner of the
// underlying storage.
type UsageStore interface {
	// Append stores one ledger record.
	Append(ctx context.Context, rec usage.Record) error

	// SumCharged returns the total cost charged in [start, end].
	SumCharged(ctx context.Context, start, end time.Time) (int64, error)

	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit int) ([]usage.Record, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// Transport issues a single HTTP call against the provider. A non-nil error
// means the call never produced an HTTP response (DNS, connect, timeout);
// provider-level failures come back as a Response with a non-2xx status.
type Transport interface {
	Call(ctx context.Context, req provider.Request) (provider.Response, error)
}
