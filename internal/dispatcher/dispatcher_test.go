package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/DoyleJ11/aibird-bridge/internal/device"
	"github.com/DoyleJ11/aibird-bridge/internal/dispatcher/mocks"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/protocol"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
	}
}

func setup(t *testing.T) (*Dispatcher, *mocks.MockHandler, chan Snapshot) {
	t.Helper()
	return setupWithDevice(t, func() error { return nil })
}

// setupWithDevice lets a test decide what the handler reports about its device.
func setupWithDevice(t *testing.T, deviceErr func() error) (*Dispatcher, *mocks.MockHandler, chan Snapshot) {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := mocks.NewMockHandler(ctrl)
	h.EXPECT().Err().DoAndReturn(deviceErr).AnyTimes()
	snaps := make(chan Snapshot, 16)

	ctx, cancel := context.WithCancel(context.Background())
	d := New(ctx, engine.NewSession("s-1"), h, WithNotify(func(s Snapshot) { snaps <- s }))
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d, h, snaps
}

func cmd(id protocol.MessageID, args ...int32) protocol.Command {
	if args == nil {
		args = []int32{}
	}
	return protocol.Command{ID: id, Args: args}
}

func TestDispatch_UnknownIDNeverReachesHandler(t *testing.T) {
	d, _, snaps := setup(t)

	_, err := d.Dispatch(context.Background(), cmd(protocol.MessageID(99)))
	require.ErrorIs(t, err, protocol.ErrUnknownMessage)

	recvNoSnapshot(t, snaps, 50*time.Millisecond)
	v, err := d.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, v.Version)
	assert.Equal(t, 0, v.Commands)
}

func TestDispatch_WrongArity(t *testing.T) {
	d, _, _ := setup(t)

	_, err := d.Dispatch(context.Background(), cmd(protocol.MsgCartShootSafe, 1, 2))
	require.ErrorIs(t, err, protocol.ErrArity)
}

func TestDispatch_ShotsRouteWithModeAndReplyOne(t *testing.T) {
	cases := []struct {
		id   protocol.MessageID
		want engine.ShotCommand
	}{
		{protocol.MsgCartShootSafe, engine.ShotCommand{Safe: true, A: -30, B: 20, TapTime: 1000}},
		{protocol.MsgPolarShootSafe, engine.ShotCommand{Safe: true, Polar: true, A: -30, B: 20, TapTime: 1000}},
		{protocol.MsgCartShootFast, engine.ShotCommand{A: -30, B: 20, TapTime: 1000}},
		{protocol.MsgPolarShootFast, engine.ShotCommand{Polar: true, A: -30, B: 20, TapTime: 1000}},
	}

	for _, tc := range cases {
		t.Run(tc.id.String(), func(t *testing.T) {
			d, h, _ := setup(t)
			h.EXPECT().Shoot(gomock.Any(), gomock.Any(), tc.want).Times(1)

			res, err := d.Dispatch(context.Background(), cmd(tc.id, -30, 20, 1000))
			require.NoError(t, err)
			assert.Equal(t, protocol.EncodeInt(1), res.Reply)
			assert.False(t, res.Closed)
		})
	}
}

func TestDispatch_QueriesEncodeHandlerValues(t *testing.T) {
	d, h, _ := setup(t)
	h.EXPECT().State(gomock.Any(), gomock.Any()).Return(engine.StateWon)
	h.EXPECT().Score(gomock.Any()).Return(48210)
	h.EXPECT().IsLevelOver(gomock.Any(), gomock.Any()).Return(false)

	ctx := context.Background()

	res, err := d.Dispatch(ctx, cmd(protocol.MsgState))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 6}, res.Reply)

	res, err = d.Dispatch(ctx, cmd(protocol.MsgScore))
	require.NoError(t, err)
	assert.Equal(t, protocol.EncodeInt(48210), res.Reply)

	res, err = d.Dispatch(ctx, cmd(protocol.MsgIsLevelOver))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, res.Reply)
}

func TestDispatch_Screenshot(t *testing.T) {
	d, h, snaps := setup(t)
	png := []byte{0x89, 'P', 'N', 'G'}
	boom := errors.New("camera gone")

	gomock.InOrder(
		h.EXPECT().Screenshot(gomock.Any(), gomock.Any()).Return(png, nil),
		h.EXPECT().Screenshot(gomock.Any(), gomock.Any()).Return(nil, boom),
	)

	res, err := d.Dispatch(context.Background(), cmd(protocol.MsgScreenshot))
	require.NoError(t, err)
	assert.Equal(t, protocol.EncodeScreenshot(png), res.Reply)
	assert.Equal(t, 1, recvSnapshot(t, snaps, 100*time.Millisecond).Version)

	_, err = d.Dispatch(context.Background(), cmd(protocol.MsgScreenshot))
	require.ErrorIs(t, err, boom)
	recvNoSnapshot(t, snaps, 50*time.Millisecond)
}

func TestDispatch_LoadLevelPassesArgumentAndPublishesSession(t *testing.T) {
	d, h, snaps := setup(t)
	h.EXPECT().LoadLevel(gomock.Any(), gomock.Any(), 7).Do(func(_ context.Context, s *engine.Session, level int) {
		s.Loaded(level)
	})

	res, err := d.Dispatch(context.Background(), cmd(protocol.MsgLoadLevel, 7))
	require.NoError(t, err)
	assert.Equal(t, protocol.EncodeInt(1), res.Reply)

	snap := recvSnapshot(t, snaps, 100*time.Millisecond)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, 7, snap.Session.Level)
	assert.Equal(t, engine.StatePlaying, snap.Session.GameState)
	assert.Equal(t, protocol.MsgLoadLevel, snap.Last)
}

func TestDispatch_VersionIncrementsInOrder(t *testing.T) {
	d, h, snaps := setup(t)
	gomock.InOrder(
		h.EXPECT().ZoomOut(gomock.Any(), gomock.Any()),
		h.EXPECT().ZoomIn(gomock.Any(), gomock.Any()),
		h.EXPECT().RestartLevel(gomock.Any(), gomock.Any()),
	)

	ctx := context.Background()
	for _, id := range []protocol.MessageID{protocol.MsgZoomOut, protocol.MsgZoomIn, protocol.MsgRestartLevel} {
		res, err := d.Dispatch(ctx, cmd(id))
		require.NoError(t, err)
		assert.Equal(t, protocol.EncodeInt(1), res.Reply)
	}

	for want := 1; want <= 3; want++ {
		assert.Equal(t, want, recvSnapshot(t, snaps, 100*time.Millisecond).Version)
	}

	v, err := d.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Commands)
	assert.Equal(t, 3, v.Session.Version)
}

func TestDispatch_CloseEndsSession(t *testing.T) {
	d, h, _ := setup(t)
	h.EXPECT().Close(gomock.Any(), gomock.Any())

	res, err := d.Dispatch(context.Background(), cmd(protocol.MsgClose))
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, protocol.EncodeInt(1), res.Reply)

	v, err := d.View(context.Background())
	require.NoError(t, err)
	assert.True(t, v.Closed)
}

func TestDispatch_AfterShutdown(t *testing.T) {
	d, _, _ := setup(t)

	d.Inbox() <- Shutdown{}
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatalf("dispatcher did not stop")
	}

	_, err := d.Dispatch(context.Background(), cmd(protocol.MsgScore))
	require.ErrorIs(t, err, ErrStopped)
}

func TestStop_CancelsCommandInFlight(t *testing.T) {
	d, h, _ := setup(t)
	started := make(chan struct{})
	h.EXPECT().Shoot(gomock.Any(), gomock.Any(), gomock.Any()).Do(func(ctx context.Context, _ *engine.Session, _ engine.ShotCommand) {
		close(started)
		<-ctx.Done()
	})

	errc := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), cmd(protocol.MsgCartShootSafe, 1, 2, 3))
		errc <- err
	}()

	<-started
	d.Stop()

	select {
	case err := <-errc:
		// The reply races with the done channel; either is acceptable.
		if err != nil {
			require.ErrorIs(t, err, ErrStopped)
		}
	case <-time.After(time.Second):
		t.Fatalf("dispatch did not return after stop")
	}
}

func TestDispatch_LostDeviceEndsTheSession(t *testing.T) {
	var lost atomic.Pointer[error]
	d, h, snaps := setupWithDevice(t, func() error {
		if p := lost.Load(); p != nil {
			return *p
		}
		return nil
	})
	ctx := context.Background()

	h.EXPECT().ZoomOut(gomock.Any(), gomock.Any())
	_, err := d.Dispatch(ctx, cmd(protocol.MsgZoomOut))
	require.NoError(t, err)
	recvSnapshot(t, snaps, time.Second)

	dead := fmt.Errorf("%w: readScore: use of closed network connection", device.ErrClosed)
	h.EXPECT().Shoot(gomock.Any(), gomock.Any(), gomock.Any()).Do(func(context.Context, *engine.Session, engine.ShotCommand) {
		lost.Store(&dead)
	})
	res, err := d.Dispatch(ctx, cmd(protocol.MsgPolarShootSafe, 100, 4500, 0))
	require.ErrorIs(t, err, device.ErrClosed)
	assert.Nil(t, res.Reply, "no reply for a shot nobody saw")
	recvNoSnapshot(t, snaps, 50*time.Millisecond)

	// Close still answers so the agent can hang up cleanly.
	h.EXPECT().Close(gomock.Any(), gomock.Any())
	res, err = d.Dispatch(ctx, cmd(protocol.MsgClose))
	require.NoError(t, err)
	assert.True(t, res.Closed)
}
