package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/aibird-bridge/internal/dispatcher"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/hub"
	"github.com/DoyleJ11/aibird-bridge/internal/protocol"
	"github.com/DoyleJ11/aibird-bridge/internal/store"
	"github.com/DoyleJ11/aibird-bridge/internal/types"
)

func setup(t *testing.T) (http.Handler, *hub.Hub, *store.Memory) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub(ctx, 0)
	rec := store.NewMemory(0, 0)
	return SetupRoutes(Deps{Hub: h, Store: rec}), h, rec
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthz(t *testing.T) {
	srv, _, _ := setup(t)
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
}

func TestSessions_ListAndGet(t *testing.T) {
	srv, h, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, h.Register(ctx, "abc", "10.1.1.1:4000", "tcp", nil))
	s := engine.NewSession("abc")
	s.Loaded(21)
	s.Score = 5100
	s.ActionsTaken = 2
	h.Notify("abc")(dispatcher.Snapshot{Version: 3, Session: s.Snapshot(), Last: protocol.MsgPolarShootSafe})

	rr := get(t, srv, "/sessions")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []types.SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rr = get(t, srv, "/sessions/abc")
	require.Equal(t, http.StatusOK, rr.Code)
	var v types.SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, "abc", v.ID)
	assert.Equal(t, 21, v.Level)
	assert.Equal(t, 8, v.ExpectedActions)
	assert.Equal(t, 5100, v.Score)
	assert.Equal(t, "playing", v.State)
	assert.Equal(t, int32(5), v.StateCode)
	assert.Equal(t, "polar_shoot_safe", v.LastCommand)
	assert.Equal(t, 3, v.Version)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/sessions/missing").Code)
}

func TestShots(t *testing.T) {
	srv, _, rec := setup(t)
	ctx := context.Background()

	require.NoError(t, rec.OpenSession(ctx, store.SessionRecord{ID: "abc"}))
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.RecordShot(ctx, store.ShotRecord{
			SessionID:  "abc",
			Level:      1,
			Safe:       true,
			ScoreAfter: 1000 * (i + 1),
			StateAfter: int32(engine.StatePlaying),
			Mode:       "stability",
		}))
	}

	rr := get(t, srv, "/sessions/abc/shots?limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	var shots []types.ShotView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &shots))
	require.Len(t, shots, 2)
	assert.Equal(t, 3000, shots[0].ScoreAfter)
	assert.Equal(t, "playing", shots[0].State)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/sessions/abc/shots?limit=zero").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/sessions/nope/shots").Code)
}

func TestNoAgentsMeansNoWebsocketRoute(t *testing.T) {
	srv, _, _ := setup(t)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/ws").Code)
}
