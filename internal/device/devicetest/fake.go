// Package devicetest provides a scripted in-memory device for tests.
package devicetest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/DoyleJ11/aibird-bridge/internal/device"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

// ScoreRead is one scripted ReadScore result. Err set means failure.
type ScoreRead struct {
	Score int
	Err   error
}

// Fake replays scripted perception results. When a script runs out the last
// entry repeats, so a test only has to describe the interesting prefix.
// All recorded actuation calls are available through Calls.
type Fake struct {
	mu sync.Mutex

	Scores   []ScoreRead
	States   []engine.GameState
	Slings   []bool // found per LocateSling call
	Overlays []bool // eagle present per DetectOverlay call
	Pigs     []int  // pig count per LocatePigs call

	SlingBox image.Rectangle
	Width    int
	Height   int

	// Errors returned by actuation methods, keyed by method name.
	Fail map[string]error
	// Flaky scripts per-call errors by method name. Each call consumes one
	// entry; once the list is used up the method succeeds again.
	Flaky map[string][]error
	// Broken, when set, is returned by every method, as by a lost link.
	Broken error

	calls      []string
	drags      []engine.Shot
	clicks     []image.Point
	loaded     []int
	frames     int
	scoreIdx   int
	stateIdx   int
	slingIdx   int
	overlayIdx int
	pigIdx     int
	closed     int
	stateReads int
	scoreReads int
}

var _ device.Device = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		SlingBox: image.Rect(190, 310, 210, 370),
		Width:    8,
		Height:   6,
	}
}

func next[T any](script []T, idx *int, zero T) T {
	if len(script) == 0 {
		return zero
	}
	i := *idx
	if i >= len(script) {
		i = len(script) - 1
	} else {
		*idx = i + 1
	}
	return script[i]
}

func (f *Fake) record(name string) error {
	f.calls = append(f.calls, name)
	if f.Broken != nil {
		return f.Broken
	}
	if errs := f.Flaky[name]; len(errs) > 0 {
		f.Flaky[name] = errs[1:]
		if errs[0] != nil {
			return errs[0]
		}
	}
	if f.Fail != nil {
		return f.Fail[name]
	}
	return nil
}

func (f *Fake) CaptureFrame(ctx context.Context) (device.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CaptureFrame"); err != nil {
		return device.Frame{}, err
	}
	f.frames++

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	img.Set(0, 0, color.RGBA{R: uint8(f.frames), A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return device.Frame{}, err
	}
	return device.Frame{Handle: fmt.Sprintf("frame-%d", f.frames), PNG: buf.Bytes()}, nil
}

func (f *Fake) LocateSling(ctx context.Context, fr device.Frame) (image.Rectangle, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LocateSling"); err != nil {
		return image.Rectangle{}, false, err
	}
	if !next(f.Slings, &f.slingIdx, true) {
		return image.Rectangle{}, false, nil
	}
	return f.SlingBox, true, nil
}

func (f *Fake) LocatePigs(ctx context.Context, fr device.Frame) ([]image.Rectangle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LocatePigs"); err != nil {
		return nil, err
	}
	n := next(f.Pigs, &f.pigIdx, 1)
	pigs := make([]image.Rectangle, n)
	for i := range pigs {
		pigs[i] = image.Rect(500+10*i, 300, 508+10*i, 308)
	}
	return pigs, nil
}

func (f *Fake) DetectOverlay(ctx context.Context, fr device.Frame) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DetectOverlay"); err != nil {
		return false, err
	}
	return next(f.Overlays, &f.overlayIdx, false), nil
}

func (f *Fake) Click(ctx context.Context, at image.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, at)
	return f.record("Click")
}

func (f *Fake) Drag(ctx context.Context, shot engine.Shot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drags = append(f.drags, shot)
	return f.record("Drag")
}

func (f *Fake) simple(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(name)
}

func (f *Fake) ZoomOut(ctx context.Context) error        { return f.simple("ZoomOut") }
func (f *Fake) ZoomIn(ctx context.Context) error         { return f.simple("ZoomIn") }
func (f *Fake) Resume(ctx context.Context) error         { return f.simple("Resume") }
func (f *Fake) DismissOverlay(ctx context.Context) error { return f.simple("DismissOverlay") }
func (f *Fake) Restart(ctx context.Context) error        { return f.simple("Restart") }

func (f *Fake) LoadLevel(ctx context.Context, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, level)
	return f.record("LoadLevel")
}

func (f *Fake) ReadScore(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreReads++
	if err := f.record("ReadScore"); err != nil {
		return 0, err
	}
	r := next(f.Scores, &f.scoreIdx, ScoreRead{})
	return r.Score, r.Err
}

func (f *Fake) ObserveGameState(ctx context.Context) (engine.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateReads++
	if err := f.record("ObserveGameState"); err != nil {
		return engine.StateUnknown, err
	}
	return next(f.States, &f.stateIdx, engine.StatePlaying), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.calls = append(f.calls, "Close")
	return f.Fail["Close"]
}

// Break makes every later call fail with err, as a dropped link would.
func (f *Fake) Break(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Broken = err
}

// Calls lists every method invoked, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times method was called.
func (f *Fake) Count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

func (f *Fake) Drags() []engine.Shot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Shot(nil), f.drags...)
}

func (f *Fake) Clicks() []image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Point(nil), f.clicks...)
}

func (f *Fake) Loaded() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.loaded...)
}

func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) ScoreReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoreReads
}

func (f *Fake) StateReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateReads
}

// Opener hands out f for every session.
func (f *Fake) Opener() device.Opener {
	return device.OpenerFunc(func(context.Context) (device.Device, error) { return f, nil })
}
