package metrics

import (
	"testing"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Recording against initialized collectors must not panic.
	LinkDiscovered("accepted")
	LinkDiscovered("rejected")
	BlobScanned("ok")
	ResolveOutcome("404")
	ResolveRateLimited()
	SetResolveQueueDepth(42)
	SinkFlush("links")
}

func TestHelpersAreNoOpsBeforeInit(t *testing.T) {
	// Helpers nil-check their collectors, so packages can record metrics
	// without caring whether the process wired Prometheus. Note Init may
	// already have run via the sibling test; this mostly documents intent.
	LinkDiscovered("accepted")
	ResolveOutcome("302")
}
