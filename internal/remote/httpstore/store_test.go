package httpstore

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focussync/internal/models"
	"focussync/internal/remote"
	"focussync/internal/remote/remotetest"
	"focussync/internal/remote/sqlstore"
	"focussync/internal/server"
)

func init() { gin.SetMode(gin.TestMode) }

func newServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	backing, err := sqlstore.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backing.Close() })
	ts := httptest.NewServer(server.NewRouter(backing, server.Options{AuthToken: token, Logger: zerolog.Nop()}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPCompliance(t *testing.T) {
	remotetest.Run(t, func(t *testing.T) remote.Store {
		ts := newServer(t, "tok")
		return New(ts.URL, "tok", 5*time.Second)
	})
}

func TestReplaceOverHTTP(t *testing.T) {
	ctx := context.Background()
	s := New(newServer(t, "").URL, "", time.Second)

	rr, ok := s.Reminders().(remote.ReminderReplacer)
	require.True(t, ok)
	require.NoError(t, rr.Replace(ctx, "u1", []models.Reminder{{ID: "r1"}, {ID: "r2"}}))
	require.NoError(t, rr.Replace(ctx, "u1", nil))
	n, err := s.Reminders().Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	ar := s.Apps().(remote.AppsReplacer)
	require.NoError(t, ar.Replace(ctx, "u1", models.AppSelection{Blocked: map[string]bool{"a": true}}))
	require.NoError(t, ar.Replace(ctx, "u1", models.AppSelection{Blocked: map[string]bool{"b": true}}))
	got, err := s.Apps().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"b": true}, got.Blocked)
}

func TestWrongTokenIsRejected(t *testing.T) {
	s := New(newServer(t, "right").URL, "wrong", time.Second)
	_, err := s.Settings().Count(context.Background(), "u1")
	assert.ErrorIs(t, err, models.ErrRemoteRejected)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusServiceUnavailable:  models.ErrRemoteUnavailable,
		http.StatusBadGateway:          models.ErrRemoteUnavailable,
		http.StatusGatewayTimeout:      models.ErrRemoteUnavailable,
		http.StatusUnprocessableEntity: models.ErrMalformedRecord,
		http.StatusBadRequest:          models.ErrInvalidArgument,
		http.StatusInternalServerError: models.ErrRemoteRejected,
		http.StatusConflict:            models.ErrRemoteRejected,
	}
	for code, want := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}))
		_, err := New(ts.URL, "", time.Second).Reminders().List(context.Background(), "u1")
		ts.Close()
		assert.ErrorIs(t, err, want, "status %d", code)
	}
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New("http://"+addr, "", time.Second).Analytics().Count(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRemoteUnavailable))
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	ts := newServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(ts.URL, "", time.Second).Settings().Get(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestTimeoutDefault(t *testing.T) {
	assert.Equal(t, defaultTimeout, requestTimeout(0))
	assert.Equal(t, defaultTimeout, requestTimeout(-time.Second))
	assert.Equal(t, 2*time.Second, requestTimeout(2*time.Second))
}

func TestSlowServerIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	_, err := New(ts.URL, "", 100*time.Millisecond).Reminders().Count(context.Background(), "u1")
	assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
}
