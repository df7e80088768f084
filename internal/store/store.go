// Package store persists discovered links and the discovery partition table
// in Postgres. Uniqueness of the url column is the only deduplication
// mechanism in the system: duplicate inserts are resolved here, never by an
// in-memory set.
package store

import (
	"context"
	"errors"
)

// PrefixStatus is the lifecycle state of one partition unit.
type PrefixStatus string

// Partition unit states. A unit claimed by a run that dies stays
// PROCESSING until reset by hand.
const (
	PrefixTODO       PrefixStatus = "TODO"
	PrefixProcessing PrefixStatus = "PROCESSING"
	PrefixDone       PrefixStatus = "DONE"
)

// ErrNoWork is returned by Claim when no TODO partition units remain.
var ErrNoWork = errors.New("no claimable prefixes")

// URLWriter persists a batch of url strings idempotently. Implementations
// must treat unique-key violations as already-present, not as errors.
type URLWriter interface {
	// BulkInsert writes the batch unordered and returns the number of rows
	// actually inserted (duplicates excluded).
	BulkInsert(ctx context.Context, urls []string) (int64, error)
}

// PrefixClaimer hands out partition units to discovery runs.
type PrefixClaimer interface {
	// Claim atomically moves one TODO unit to PROCESSING and returns its
	// prefix, or ErrNoWork when the table is exhausted.
	Claim(ctx context.Context) (string, error)
	// Complete marks a claimed unit DONE.
	Complete(ctx context.Context, prefix string) error
}
