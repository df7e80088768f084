// Package source abstracts the external corpus-listing provider that
// discovery scans for short-link occurrences.
package source

import "context"

// Blob is one unit of searchable text. Provenance identifies where it came
// from and is used only for logging.
type Blob struct {
	Content    string
	Provenance string
}

// Provider searches an external corpus and streams matching text blobs.
// Implementations own pagination; per-item failures (missing content,
// undecodable bytes) are skipped inside the iteration, never surfaced.
type Provider interface {
	// Search invokes yield for every blob matching the query, in provider
	// order, until the results are exhausted, yield returns false, or the
	// context ends. The returned error covers provider-level failures only.
	Search(ctx context.Context, query string, yield func(Blob) bool) error
}
