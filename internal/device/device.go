// Package device declares what the bridge needs from the actuation and
// perception layer, and provides a websocket client for a remote agent that
// implements it.
package device

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

var (
	// ErrScoreUnavailable means no valid score can currently be derived from
	// the screen. During a shot this only happens after the level was lost.
	ErrScoreUnavailable = errors.New("score unavailable")
	ErrClosed           = errors.New("device closed")
	ErrRemote           = errors.New("perception agent error")
)

// Frame is one captured screenshot. Handle identifies the frame on the agent
// side so vision calls need not resend the pixels.
type Frame struct {
	Handle string
	PNG    []byte
}

func (f Frame) Image() (image.Image, error) {
	return png.Decode(bytes.NewReader(f.PNG))
}

type Camera interface {
	CaptureFrame(ctx context.Context) (Frame, error)
}

type Vision interface {
	// LocateSling returns the sling bounding box, ok=false when not visible.
	LocateSling(ctx context.Context, f Frame) (box image.Rectangle, ok bool, err error)
	LocatePigs(ctx context.Context, f Frame) ([]image.Rectangle, error)
	// DetectOverlay reports whether the eagle interstitial covers the frame.
	DetectOverlay(ctx context.Context, f Frame) (bool, error)
}

type Actuator interface {
	Click(ctx context.Context, at image.Point) error
	Drag(ctx context.Context, shot engine.Shot) error
	ZoomOut(ctx context.Context) error
	ZoomIn(ctx context.Context) error
	// Resume clears pause menus and other transient overlays.
	Resume(ctx context.Context) error
	DismissOverlay(ctx context.Context) error
	Restart(ctx context.Context) error
	LoadLevel(ctx context.Context, level int) error
}

type Scoreboard interface {
	// ReadScore returns ErrScoreUnavailable when the score cannot be read.
	ReadScore(ctx context.Context) (int, error)
	ObserveGameState(ctx context.Context) (engine.GameState, error)
}

type Device interface {
	Camera
	Vision
	Actuator
	Scoreboard
	io.Closer
}

// Opener acquires a device for one session.
type Opener interface {
	Open(ctx context.Context) (Device, error)
}

type OpenerFunc func(ctx context.Context) (Device, error)

func (f OpenerFunc) Open(ctx context.Context) (Device, error) { return f(ctx) }
