package resolve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	return cp
}

func TestCheckpointRecordAndFilter(t *testing.T) {
	t.Parallel()

	cp := openTestCheckpoint(t)
	ctx := context.Background()

	require.NoError(t, cp.Record(ctx, Outcome{
		URL:         "https://goo.gl/nBuQ4W",
		Status:      string(RedirectTemporary),
		RedirectURL: "https://example.com/landing",
	}))

	resolved, err := cp.ResolvedURLs(ctx)
	require.NoError(t, err)
	require.Contains(t, resolved, "https://goo.gl/nBuQ4W")
	require.Len(t, resolved, 1)
}

func TestCheckpointRecordKeepsFirstOutcome(t *testing.T) {
	t.Parallel()

	cp := openTestCheckpoint(t)
	ctx := context.Background()

	first := Outcome{URL: "https://goo.gl/abc", Status: string(NotFound)}
	require.NoError(t, cp.Record(ctx, first))
	// A second writer racing on the same url is absorbed, not an error.
	require.NoError(t, cp.Record(ctx, Outcome{
		URL:    "https://goo.gl/abc",
		Status: string(Forbidden),
	}))

	n, err := cp.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	var got Outcome
	require.NoError(t, cp.db.First(&got, "url = ?", "https://goo.gl/abc").Error)
	require.Equal(t, string(NotFound), got.Status)
}

func TestCheckpointReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.db")
	ctx := context.Background()

	cp, err := OpenCheckpoint(path)
	require.NoError(t, err)
	require.NoError(t, cp.Record(ctx, Outcome{URL: "https://goo.gl/x1", Status: string(NotFound)}))

	reopened, err := OpenCheckpoint(path)
	require.NoError(t, err)
	resolved, err := reopened.ResolvedURLs(ctx)
	require.NoError(t, err)
	require.Contains(t, resolved, "https://goo.gl/x1")
}
