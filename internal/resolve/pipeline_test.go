package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		Workers:          4,
		Timeout:          2 * time.Second,
		RateLimitPause:   5 * time.Millisecond,
		ProgressInterval: 10 * time.Millisecond,
	}
}

func TestRunRecordsOutcomes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.com/final")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cp := openTestCheckpoint(t)
	p := New(cp, testConfig(), zap.NewNop())
	ctx := context.Background()

	urls := []string{srv.URL + "/gone", srv.URL + "/moved", srv.URL + "/live"}
	require.NoError(t, p.Run(ctx, urls))

	resolved, err := cp.ResolvedURLs(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	var gone Outcome
	require.NoError(t, cp.db.First(&gone, "url = ?", srv.URL+"/gone").Error)
	require.Equal(t, string(NotFound), gone.Status)

	var moved Outcome
	require.NoError(t, cp.db.First(&moved, "url = ?", srv.URL+"/moved").Error)
	require.Equal(t, string(RedirectTemporary), moved.Status)
	require.Equal(t, "https://example.com/final", moved.RedirectURL)
}

func TestRunSkipsAlreadyResolved(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	cp := openTestCheckpoint(t)
	ctx := context.Background()
	done := srv.URL + "/already"
	require.NoError(t, cp.Record(ctx, Outcome{URL: done, Status: string(NotFound)}))

	p := New(cp, testConfig(), zap.NewNop())
	require.NoError(t, p.Run(ctx, []string{done, srv.URL + "/new"}))

	// Only the new link was probed; the checkpointed one was filtered out
	// before the queue was populated.
	require.Equal(t, int32(1), hits.Load())
}

func TestRunDropsRateLimitedAttempt(t *testing.T) {
	t.Parallel()

	var limited, probed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		limited.Add(1)
		w.Header().Set("Location",
			"https://www.google.com/sorry/index?continue=https://goo.gl/abc&q=x")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		probed.Add(1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cp := openTestCheckpoint(t)
	cfg := testConfig()
	cfg.Workers = 1 // deterministic: the same worker must move on after the pause
	p := New(cp, cfg, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, p.Run(ctx, []string{srv.URL + "/limited", srv.URL + "/ok"}))

	require.Equal(t, int32(1), limited.Load())
	require.Equal(t, int32(1), probed.Load())

	// No outcome for the rate-limited link; it stays unresolved.
	resolved, err := cp.ResolvedURLs(ctx)
	require.NoError(t, err)
	require.NotContains(t, resolved, srv.URL+"/limited")
	require.Contains(t, resolved, srv.URL+"/ok")
}

func TestRunDropsTransportFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	dead := srv.URL + "/x"
	srv.Close() // connection refused from here on

	cp := openTestCheckpoint(t)
	p := New(cp, testConfig(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, p.Run(ctx, []string{dead}))
	n, err := cp.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRunPersistsUnknownOutcomes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	cp := openTestCheckpoint(t)
	p := New(cp, testConfig(), zap.NewNop())
	ctx := context.Background()

	url := srv.URL + "/odd"
	require.NoError(t, p.Run(ctx, []string{url}))

	var got Outcome
	require.NoError(t, cp.db.First(&got, "url = ?", url).Error)
	require.Equal(t, string(Unknown), got.Status)
}

func TestSelectUnresolvedFilters(t *testing.T) {
	t.Parallel()

	resolved := map[string]struct{}{"https://goo.gl/done": {}}
	got := selectUnresolved([]string{
		"",
		"https://goo.gl/",
		"https://goo.gl/done",
		"https://goo.gl/b",
		"https://goo.gl/a",
		"https://goo.gl/a", // duplicate
	}, resolved)
	require.Equal(t, []string{"https://goo.gl/a", "https://goo.gl/b"}, got)
}

func TestRunEmptyWorkSet(t *testing.T) {
	t.Parallel()

	cp := openTestCheckpoint(t)
	p := New(cp, testConfig(), zap.NewNop())
	require.NoError(t, p.Run(context.Background(), []string{"", "https://goo.gl/"}))
}
