// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chanrelay/chanrelay/internal/relay"
	"github.com/chanrelay/chanrelay/internal/server"
	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannels struct{ cfg *store.ChannelConfig }

func (f fakeChannels) Snapshot() *store.ChannelConfig { return f.cfg.Clone() }

type fakeQueues map[int64]int

func (f fakeQueues) QueueDepths() map[int64]int { return f }

func newTestServer(t *testing.T, svc *server.Services) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0", Version: "1.2.3"}, svc)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_New_EmptyListenAddr(t *testing.T) {
	_, err := server.New(server.Config{}, nil)
	require.Error(t, err)
	assert.True(t, relayerr.HasCode(err, relayerr.CodeServerConfigInvalid), "got %s", relayerr.CodeOf(err))
}

func TestServer_HealthEndpoint(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, stripSchema(t, w.Body.Bytes()))
}

func TestServer_OpenAPISpec(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/openapi.json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/status")
	assert.Contains(t, w.Body.String(), "1.2.3")
}

func TestServer_StatusBeforeWiring(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body server.StatusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "starting", body.Status)
	assert.Empty(t, body.Channels.Sources)
	assert.Nil(t, body.Channels.Target)
}

func TestServer_Status(t *testing.T) {
	stats := relay.NewStats()
	stats.RecordDelivered()
	stats.RecordDelivered()
	stats.RecordFailed()
	stats.RecordFloodWait(time.Hour)

	srv := newTestServer(t, &server.Services{
		Channels: fakeChannels{cfg: &store.ChannelConfig{
			Sources:        []int64{-1001111, -1002222},
			Target:         store.Int64Ptr(-1003333),
			SelectedSource: store.Int64Ptr(-1002222),
		}},
		Stats:  stats,
		Queues: fakeQueues{-1002222: 0, -1001111: 4},
	})

	w := get(t, srv, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body server.StatusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, []int64{-1001111, -1002222}, body.Channels.Sources)
	require.NotNil(t, body.Channels.Target)
	assert.Equal(t, int64(-1003333), *body.Channels.Target)
	require.NotNil(t, body.Channels.SelectedSource)
	assert.Equal(t, int64(-1002222), *body.Channels.SelectedSource)
	assert.Equal(t, int64(2), body.Relay.Delivered)
	assert.Equal(t, int64(1), body.Relay.Failed)
	assert.Equal(t, int64(1), body.Relay.FloodWaits)
	assert.NotNil(t, body.Relay.LastDeliveryAt)
	assert.False(t, body.Platform.Available)
	assert.NotNil(t, body.Platform.CooldownUntil)
	assert.Equal(t, int64(1), body.Platform.FailureCount)
	assert.Equal(t, []server.QueueStatus{
		{ChatID: -1002222, Pending: 0},
		{ChatID: -1001111, Pending: 4},
	}, body.Queues)
}

func TestServer_StatusWithRegistry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	reg, err := relay.LoadRegistry(ctx, st.Channels(), relay.RegistryOptions{})
	require.NoError(t, err)
	srv := newTestServer(t, &server.Services{Channels: reg})

	_, err = reg.AddSource(ctx, -1004444)
	require.NoError(t, err)

	var body server.StatusBody
	require.NoError(t, json.Unmarshal(get(t, srv, "/api/v1/status").Body.Bytes(), &body))
	assert.Equal(t, []int64{-1004444}, body.Channels.Sources)
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	srv := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_StartBadAddress(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "256.0.0.1:1"}, nil)
	require.NoError(t, err)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, relayerr.HasCode(err, relayerr.CodeServerStartFailure))
}

// stripSchema drops the "$schema" link huma adds to response bodies.
func stripSchema(t *testing.T, raw []byte) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	delete(m, "$schema")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func TestServer_Source(t *testing.T) {
	srv := newTestServer(t, &server.Services{
		Channels: fakeChannels{cfg: &store.ChannelConfig{
			Sources:        []int64{-1001111, -1002222},
			SelectedSource: store.Int64Ptr(-1002222),
		}},
		Queues: fakeQueues{-1001111: 2},
	})

	tests := []struct {
		name   string
		path   string
		status int
		want   server.SourceBody
	}{
		{name: "queued source", path: "/api/v1/sources/-1001111", status: http.StatusOK,
			want: server.SourceBody{ChatID: -1001111, Pending: 2}},
		{name: "selected source", path: "/api/v1/sources/-1002222", status: http.StatusOK,
			want: server.SourceBody{ChatID: -1002222, Selected: true}},
		{name: "not a source", path: "/api/v1/sources/-1009999", status: http.StatusNotFound},
		{name: "non-canonical id", path: "/api/v1/sources/12345", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv, tt.path)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var body server.SourceBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestServer_SourceBeforeWiring(t *testing.T) {
	w := get(t, newTestServer(t, nil), "/api/v1/sources/-1001111")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
