package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engage/internal/apperr"
)

func TestRegisterSendsInstanceParams(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Register(context.Background(), "event-service", "10.0.0.4", 8081)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/v1/ns/instance", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "event-service", q.Get("serviceName"))
	assert.Equal(t, "10.0.0.4", q.Get("ip"))
	assert.Equal(t, "8081", q.Get("port"))
}

func TestRegisterWithRetryEventuallySucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.RegisterWithRetry(context.Background(), "event-service", "10.0.0.4", 8081, 5, time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRegisterWithRetryGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.RegisterWithRetry(context.Background(), "event-service", "10.0.0.4", 8081, 3, time.Millisecond)
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRegisterWithRetryNoDelayAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	start := time.Now()
	err := c.RegisterWithRetry(context.Background(), "event-service", "10.0.0.4", 8081, 1, time.Minute)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "exhausted retries must not sleep the full delay again")
}

func TestRegisterWithRetryHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(srv.URL)
	err := c.RegisterWithRetry(ctx, "event-service", "10.0.0.4", 8081, 10, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolvePicksFirstHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ns/instance/list", r.URL.Path)
		assert.Equal(t, "user-service", r.URL.Query().Get("serviceName"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hosts":[
			{"ip":"10.0.0.1","port":8080,"healthy":false},
			{"ip":"10.0.0.2","port":8080,"healthy":true},
			{"ip":"10.0.0.3","port":8080,"healthy":true}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ip, port, err := c.Resolve(context.Background(), "user-service")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", ip)
	assert.Equal(t, 8080, port)

	base, err := c.ResolveURL(context.Background(), "user-service")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8080", base)
}

func TestResolveNoHealthyInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hosts":[{"ip":"10.0.0.1","port":8080,"healthy":false}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.Resolve(context.Background(), "user-service")
	assert.ErrorIs(t, err, ErrNoHealthyInstance)
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(err))
}

func TestResolveRegistryDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()

	c := New(srv.URL)
	_, _, err := c.Resolve(context.Background(), "user-service")
	require.Error(t, err)
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(err))
}

func TestHeartbeatNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/ns/instance/beat", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Heartbeat(context.Background(), "event-service", "10.0.0.4", 8081)
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(err))
}
