package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saveweb/googlrot/internal/source"
	"github.com/saveweb/googlrot/internal/store"
)

type fakeProvider struct {
	blobs []source.Blob
	err   error
}

func (f *fakeProvider) Search(_ context.Context, _ string, yield func(source.Blob) bool) error {
	for _, b := range f.blobs {
		if !yield(b) {
			return nil
		}
	}
	return f.err
}

type fakeClaimer struct {
	mu        sync.Mutex
	prefixes  []string
	completed []string
}

func (f *fakeClaimer) Claim(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prefixes) == 0 {
		return "", store.ErrNoWork
	}
	p := f.prefixes[0]
	f.prefixes = f.prefixes[1:]
	return p, nil
}

func (f *fakeClaimer) Complete(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, prefix)
	return nil
}

type memWriter struct {
	mu   sync.Mutex
	seen map[string]struct{}
	err  error
}

func newMemWriter() *memWriter { return &memWriter{seen: map[string]struct{}{}} }

func (w *memWriter) BulkInsert(_ context.Context, urls []string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	var inserted int64
	for _, u := range urls {
		if _, ok := w.seen[u]; !ok {
			w.seen[u] = struct{}{}
			inserted++
		}
	}
	return inserted, nil
}

func (w *memWriter) urls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.seen))
	for u := range w.seen {
		out = append(out, u)
	}
	return out
}

func TestRunOnceRoutesAcceptedAndRejected(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{blobs: []source.Blob{
		{
			Content:    "intro https://goo.gl/nBuQ4W then https://maps.app.goo.gl/peCJ6Z and https://example.com/x",
			Provenance: "a/readme",
		},
		{
			Content:    "form-http://goo.gl/forms/6bujSMhkgM",
			Provenance: "b/snippet",
		},
	}}
	claimer := &fakeClaimer{prefixes: []string{"nbu"}}
	links := newMemWriter()
	bad := newMemWriter()

	p := New(provider, claimer, links, bad, 10, zap.NewNop())
	require.NoError(t, p.RunOnce(context.Background()))

	require.ElementsMatch(t,
		[]string{"https://goo.gl/nBuQ4W", "https://goo.gl/forms/6bujSMhkgM"},
		links.urls())
	require.ElementsMatch(t,
		[]string{"https://maps.app.goo.gl/peCJ6Z"},
		bad.urls())
	require.Equal(t, []string{"nbu"}, claimer.completed)
}

func TestRunOnceNoWork(t *testing.T) {
	t.Parallel()

	p := New(&fakeProvider{}, &fakeClaimer{}, newMemWriter(), newMemWriter(), 10, zap.NewNop())
	err := p.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrNoWork)
}

func TestRunOnceFatalSinkErrorLeavesUnitClaimed(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{blobs: []source.Blob{
		{Content: "https://goo.gl/nBuQ4W", Provenance: "a/x"},
	}}
	claimer := &fakeClaimer{prefixes: []string{"nbu"}}
	links := newMemWriter()
	links.err = errors.New("disk full")

	p := New(provider, claimer, links, newMemWriter(), 10, zap.NewNop())
	err := p.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.Empty(t, claimer.completed)
}

func TestRunOnceProviderErrorFailsRun(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("search exploded")}
	claimer := &fakeClaimer{prefixes: []string{"abc"}}

	p := New(provider, claimer, newMemWriter(), newMemWriter(), 10, zap.NewNop())
	err := p.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "search exploded")
	require.Empty(t, claimer.completed)
}

func TestRunQueryDoesNotTouchPartitions(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{blobs: []source.Blob{
		{Content: "docs at goo.gl/FFDUK5", Provenance: "repo/desc"},
	}}
	claimer := &fakeClaimer{prefixes: []string{"zzz"}}
	links := newMemWriter()

	p := New(provider, claimer, links, newMemWriter(), 10, zap.NewNop())
	require.NoError(t, p.RunQuery(context.Background(), "goo.gl/F"))
	require.ElementsMatch(t, []string{"https://goo.gl/FFDUK5"}, links.urls())
	require.Empty(t, claimer.completed)
	require.Len(t, claimer.prefixes, 1)
}

func TestRunOnceDeduplicatesAtStorage(t *testing.T) {
	t.Parallel()

	// The same link in two blobs produces one stored record and no error.
	provider := &fakeProvider{blobs: []source.Blob{
		{Content: "https://goo.gl/nBuQ4W", Provenance: "a/1"},
		{Content: "see goo.gl/nBuQ4W again", Provenance: "a/2"},
	}}
	claimer := &fakeClaimer{prefixes: []string{"nbu"}}
	links := newMemWriter()

	p := New(provider, claimer, links, newMemWriter(), 10, zap.NewNop())
	require.NoError(t, p.RunOnce(context.Background()))
	require.Len(t, links.urls(), 1)
}
