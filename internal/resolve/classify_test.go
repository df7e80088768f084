package resolve

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyStatusTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		location string
		body     string
		want     Classification
		target   string
	}{
		{301, "https://example.com/a", "", RedirectPermanent, "https://example.com/a"},
		{302, "https://example.com/b", "", RedirectTemporary, "https://example.com/b"},
		{404, "", "", NotFound, ""},
		{403, "", "", Forbidden, ""},
		{200, "", "<html>landing</html>", DeletedStillLive, ""},
		{400, "", "this link has been blocked by the service", Blocked, ""},
		{400, "", "bad request", Unknown, ""},
		{503, "", "", Unknown, ""},
		{418, "", "", Unknown, ""},
	}
	for _, tt := range tests {
		got, target := Classify(tt.status, tt.location, tt.body)
		require.Equalf(t, tt.want, got, "status=%d body=%q", tt.status, tt.body)
		require.Equal(t, tt.target, target)
	}
}

func TestRateLimited(t *testing.T) {
	t.Parallel()

	limited := &http.Response{Header: http.Header{
		"Location": {"https://www.google.com/sorry/index?continue=https://goo.gl/nBuQ4W&q=EhAk"},
	}}
	require.True(t, RateLimited(limited))

	bare := &http.Response{Header: http.Header{
		"Location": {"http://google.com/sorry/index?continue=https://goo.gl/abc&q=x"},
	}}
	require.True(t, RateLimited(bare))

	realRedirect := &http.Response{Header: http.Header{
		"Location": {"https://example.com/target"},
	}}
	require.False(t, RateLimited(realRedirect))

	noLocation := &http.Response{Header: http.Header{}}
	require.False(t, RateLimited(noLocation))
}
