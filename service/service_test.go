package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzHandle(t *testing.T) {
	h := &HealthzServer{}
	rec := httptest.NewRecorder()

	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, (&HealthzServer{}).Shutdown())
	assert.NoError(t, (&MetricsServer{}).Shutdown())
}

// freeAddr reserves an ephemeral port and releases it for the server under
// test to claim.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// waitForBody polls the URL until it responds or the deadline passes.
func waitForBody(t *testing.T, url string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, readErr)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			return string(body)
		}
		if time.Now().After(deadline) {
			t.Fatalf("server at %s never came up: %v", url, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthzServerRoundTrip(t *testing.T) {
	srv := &HealthzServer{}
	addr := freeAddr(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background(), addr)
	}()

	body := waitForBody(t, fmt.Sprintf("http://%s/healthz", addr))
	assert.Equal(t, "OK", body)

	require.NoError(t, srv.Shutdown())
	assert.True(t, errors.Is(<-errCh, http.ErrServerClosed))
}

func TestMetricsServerRoundTrip(t *testing.T) {
	srv := &MetricsServer{}
	addr := freeAddr(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background(), addr)
	}()

	body := waitForBody(t, fmt.Sprintf("http://%s/metrics", addr))
	assert.Contains(t, body, "go_goroutines", "the default Prometheus collectors are exposed")

	require.NoError(t, srv.Shutdown())
	assert.True(t, errors.Is(<-errCh, http.ErrServerClosed))
}
