package fetch

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/boxd-office/internal/monitoring"
)

func testOptions() Options {
	return Options{
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	}
}

// flakyServer answers with the given statuses in order, then 200.
func flakyServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	srv, hits := flakyServer(t, http.StatusTooManyRequests, http.StatusServiceUnavailable)
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	c := New(testOptions(), WithMetrics(m))

	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, "<html>ok</html>", string(resp.Body))
	require.EqualValues(t, 3, atomic.LoadInt32(hits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("status")))
}

func TestGet_ExhaustedRateLimit(t *testing.T) {
	srv, hits := flakyServer(t, 429, 429, 429, 429)
	c := New(testOptions())

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(hits))
}

func TestGet_ExhaustedServerError(t *testing.T) {
	srv, _ := flakyServer(t, 503, 503, 503)
	c := New(testOptions())

	_, err := c.Get(context.Background(), srv.URL)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.False(t, IsRateLimited(err))
	require.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestGet_NonRetryableStatusReturned(t *testing.T) {
	srv, hits := flakyServer(t, http.StatusNotFound)
	c := New(testOptions())

	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestGet_NoRetriesConfigured(t *testing.T) {
	srv, hits := flakyServer(t, 503)
	opts := testOptions()
	opts.MaxRetries = 0
	c := New(opts)

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestGet_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(testOptions())
	_, err := c.Get(context.Background(), addr)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, 3, te.Attempts)
	require.Equal(t, 0, te.StatusCode)
}

func TestGet_CancelledContextStopsRetrying(t *testing.T) {
	srv, hits := flakyServer(t, 503, 503, 503)
	opts := testOptions()
	opts.BaseDelay = 200 * time.Millisecond
	c := New(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
	require.Less(t, atomic.LoadInt32(hits), int32(3))
}

func TestGet_SendsIdentifyingHeaders(t *testing.T) {
	var ua, lang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		lang = r.Header.Get("Accept-Language")
	}))
	defer srv.Close()

	opts := testOptions()
	opts.UserAgents = []string{"boxd-test/1.0"}
	c := New(opts)

	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "boxd-test/1.0", ua)
	require.NotEmpty(t, lang)
}

func TestGet_DoesNotRetryPermanentErrors(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	c := New(testOptions(), WithMetrics(m))

	_, err := c.Get(context.Background(), "ftp://example.invalid/film/heat-1995/")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, 1, te.Attempts)
	require.Zero(t, testutil.ToFloat64(m.RemoteRetriesTotal))
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"service unavailable", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, true},
		{"not found", &HTTPStatusError{StatusCode: http.StatusNotFound}, false},
		{"eof", fmt.Errorf("read body: %w", io.EOF), true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"timeout", &net.DNSError{Err: "i/o timeout", IsTimeout: true}, true},
		{"no such host", &net.DNSError{Err: "no such host", IsNotFound: true}, false},
		{"cancelled", context.Canceled, false},
		{"unknown authority", x509.UnknownAuthorityError{}, false},
		{"plain", errors.New("unsupported protocol scheme"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTransient(tc.err))
		})
	}
}

func TestFetch_NonSuccess(t *testing.T) {
	srv, _ := flakyServer(t, http.StatusNotFound)
	c := New(testOptions())

	_, err := c.Fetch(context.Background(), srv.URL)
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.StatusCode)
	require.False(t, errors.Is(err, ErrRateLimited))
}

func TestGet_RateLimiterApplies(t *testing.T) {
	srv, hits := flakyServer(t)
	opts := testOptions()
	opts.RequestsPerSecond = 20
	c := New(opts)

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// burst of 20, the remaining 5 wait roughly 50ms each
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	require.EqualValues(t, 25, atomic.LoadInt32(hits))
}
