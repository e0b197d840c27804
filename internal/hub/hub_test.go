package hub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/aibird-bridge/internal/dispatcher"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

func TestHub_Register_Get_List(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, 0)
	defer func() { h.Inbox() <- ShutdownHub{} }()

	require.NoError(t, h.Register(ctx, "a", "10.0.0.1:5000", "tcp", nil))
	require.NoError(t, h.Register(ctx, "b", "10.0.0.2:5000", "ws", nil))

	e, err := h.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "10.0.0.1:5000", e.RemoteAddr)
	assert.Equal(t, "tcp", e.Transport)
	assert.False(t, e.StartedAt.IsZero())

	missing, err := h.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestHub_RejectsOverLimitAndDuplicates(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, 1)
	defer func() { h.Inbox() <- ShutdownHub{} }()

	require.NoError(t, h.Register(ctx, "a", "", "tcp", nil))
	require.ErrorIs(t, h.Register(ctx, "a", "", "tcp", nil), ErrDuplicate)
	require.ErrorIs(t, h.Register(ctx, "b", "", "tcp", nil), ErrSessionLimit)

	h.Unregister("a")
	require.NoError(t, h.Register(ctx, "b", "", "tcp", nil))
}

func TestHub_NotifyStoresLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, 0)
	defer func() { h.Inbox() <- ShutdownHub{} }()

	require.NoError(t, h.Register(ctx, "a", "", "tcp", nil))

	notify := h.Notify("a")
	s := engine.NewSession("a")
	s.Loaded(4)
	s.Version = 1
	notify(dispatcher.Snapshot{Version: 1, Session: s.Snapshot()})
	s.Score = 3000
	s.Version = 2
	notify(dispatcher.Snapshot{Version: 2, Session: s.Snapshot()})

	// Snapshots for unknown sessions are dropped.
	h.Notify("ghost")(dispatcher.Snapshot{Version: 9})

	e, err := h.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Snapshot.Version)
	assert.Equal(t, 3000, e.Snapshot.Session.Score)
	assert.Equal(t, 4, e.Snapshot.Session.Level)

	ghost, err := h.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)
}

func TestHub_ShutdownStopsLiveSessions(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, 0)

	var stopped atomic.Int32
	stop := func() { stopped.Add(1) }
	require.NoError(t, h.Register(ctx, "a", "", "tcp", stop))
	require.NoError(t, h.Register(ctx, "b", "", "tcp", stop))

	h.Inbox() <- ShutdownHub{}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatalf("hub did not shut down")
	}

	assert.Equal(t, int32(2), stopped.Load())
	require.ErrorIs(t, h.Register(ctx, "c", "", "tcp", nil), ErrHubClosed)

	_, err := h.List(ctx)
	require.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_UnregisterFreesSlotBeforeReturning(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, 1)

	require.NoError(t, h.Register(ctx, "a", "", "tcp", nil))

	freed := make(chan struct{})
	go func() {
		h.Unregister("a")
		close(freed)
	}()
	<-freed
	require.NoError(t, h.Register(ctx, "b", "", "tcp", nil), "slot is free as soon as Unregister returns")

	h.Inbox() <- ShutdownHub{}
	<-h.Done()

	returned := make(chan struct{})
	go func() {
		h.Unregister("b")
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatalf("Unregister blocked on a closed hub")
	}
}
