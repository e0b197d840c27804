// Package client speaks the bridge's binary protocol from the agent side.
//
// A Client is not safe for concurrent use beyond what its mutex gives: calls
// are serialised because the protocol has exactly one request in flight.
package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"sync"
	"time"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/protocol"
)

// GameState is the state code returned by State.
type GameState = engine.GameState

const (
	StateUnknown        = engine.StateUnknown
	StateMainMenu       = engine.StateMainMenu
	StateEpisodeMenu    = engine.StateEpisodeMenu
	StateLevelSelection = engine.StateLevelSelection
	StateLoading        = engine.StateLoading
	StatePlaying        = engine.StatePlaying
	StateWon            = engine.StateWon
	StateLost           = engine.StateLost
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

type Client struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
	r    *bufio.Reader
}

func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection, e.g. a websocket.NetConn.
func New(conn io.ReadWriteCloser) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn)}
}

func (c *Client) roundTrip(ctx context.Context, id protocol.MessageID, args []int32, read func(io.Reader) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.conn.(deadliner); ok {
		dl, _ := ctx.Deadline()
		_ = d.SetDeadline(dl)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if args == nil {
		args = []int32{}
	}
	if err := protocol.WriteCommand(c.conn, protocol.Command{ID: id, Args: args}); err != nil {
		return fmt.Errorf("send %s: %w", id, err)
	}
	if err := read(c.r); err != nil {
		return fmt.Errorf("reply to %s: %w", id, err)
	}
	return nil
}

func (c *Client) intCall(ctx context.Context, id protocol.MessageID, args ...int32) (int32, error) {
	var v int32
	err := c.roundTrip(ctx, id, args, func(r io.Reader) error {
		var err error
		v, err = protocol.ReadInt(r)
		return err
	})
	return v, err
}

// ScreenshotPNG returns the raw PNG bytes of the current frame.
func (c *Client) ScreenshotPNG(ctx context.Context) ([]byte, error) {
	var data []byte
	err := c.roundTrip(ctx, protocol.MsgScreenshot, nil, func(r io.Reader) error {
		var err error
		data, err = protocol.ReadScreenshot(r)
		return err
	})
	return data, err
}

func (c *Client) Screenshot(ctx context.Context) (image.Image, error) {
	data, err := c.ScreenshotPNG(ctx)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (c *Client) State(ctx context.Context) (GameState, error) {
	v, err := c.intCall(ctx, protocol.MsgState)
	if err != nil {
		return StateUnknown, err
	}
	return engine.ParseGameState(v)
}

func (c *Client) Score(ctx context.Context) (int, error) {
	v, err := c.intCall(ctx, protocol.MsgScore)
	return int(v), err
}

// CartShoot drags the bird by (dx, dy) from the sling. A safe shot returns
// only once the server saw the score settle.
func (c *Client) CartShoot(ctx context.Context, dx, dy, tapTime int, safe bool) error {
	id := protocol.MsgCartShootFast
	if safe {
		id = protocol.MsgCartShootSafe
	}
	return c.ack(ctx, id, int32(dx), int32(dy), int32(tapTime))
}

// PolarShoot takes the angle in hundredths of a degree.
func (c *Client) PolarShoot(ctx context.Context, r, thetaHundredths, tapTime int, safe bool) error {
	id := protocol.MsgPolarShootFast
	if safe {
		id = protocol.MsgPolarShootSafe
	}
	return c.ack(ctx, id, int32(r), int32(thetaHundredths), int32(tapTime))
}

func (c *Client) ZoomOut(ctx context.Context) error { return c.ack(ctx, protocol.MsgZoomOut) }
func (c *Client) ZoomIn(ctx context.Context) error  { return c.ack(ctx, protocol.MsgZoomIn) }

func (c *Client) LoadLevel(ctx context.Context, level int) error {
	return c.ack(ctx, protocol.MsgLoadLevel, int32(level))
}

func (c *Client) RestartLevel(ctx context.Context) error {
	return c.ack(ctx, protocol.MsgRestartLevel)
}

func (c *Client) IsLevelOver(ctx context.Context) (bool, error) {
	v, err := c.intCall(ctx, protocol.MsgIsLevelOver)
	return v == 1, err
}

// Close asks the server to end the session, then closes the connection.
func (c *Client) Close(ctx context.Context) error {
	err := c.ack(ctx, protocol.MsgClose)
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Client) ack(ctx context.Context, id protocol.MessageID, args ...int32) error {
	v, err := c.intCall(ctx, id, args...)
	if err != nil {
		return err
	}
	if v != 1 {
		return fmt.Errorf("%s: unexpected reply %d", id, v)
	}
	return nil
}
