package device

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

// Wire format of the perception agent: one JSON object per websocket text
// message. Responses carry the id of the request they answer.
type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (b box) rect() image.Rectangle { return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H) }

type frameRef struct {
	Frame string `json:"frame"`
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type dragParams struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	DX   int `json:"dx"`
	DY   int `json:"dy"`
	Drag int `json:"drag"`
	Tap  int `json:"tap"`
}

type RemoteOptions struct {
	// Timeout bounds a single request/response exchange.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Remote talks to a perception agent over one websocket connection. Calls
// are serialized and the agent answers requests in order.
//
// The websocket is torn down by any failed read or write, a timed out one
// included, so the first transport error breaks the Remote for good: that
// call and every later one fail with ErrClosed.
type Remote struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	nextID int64
	closed bool
	broken error
}

func Dial(ctx context.Context, url string, opts RemoteOptions) (*Remote, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial perception agent %s: %w", url, err)
	}
	// Screenshots are large.
	conn.SetReadLimit(32 << 20)
	return newRemote(conn, opts), nil
}

func newRemote(conn *websocket.Conn, opts RemoteOptions) *Remote {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{conn: conn, timeout: timeout, log: log}
}

func (r *Remote) call(ctx context.Context, method string, params, out any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.broken != nil {
		return fmt.Errorf("%w: %s: %v", ErrClosed, method, r.broken)
	}

	r.nextID++
	id := r.nextID

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := wsjson.Write(ctx, r.conn, request{ID: id, Method: method, Params: params}); err != nil {
		return r.fail(method, fmt.Errorf("write: %w", err))
	}
	var resp response
	if err := wsjson.Read(ctx, r.conn, &resp); err != nil {
		return r.fail(method, fmt.Errorf("read: %w", err))
	}
	if resp.ID != id {
		return r.fail(method, fmt.Errorf("agent answered request %d, want %d", resp.ID, id))
	}

	if resp.Error != "" {
		if resp.Error == ErrScoreUnavailable.Error() {
			return ErrScoreUnavailable
		}
		return fmt.Errorf("%w: %s: %s", ErrRemote, method, resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// fail marks the link broken. Callers hold r.mu.
func (r *Remote) fail(method string, cause error) error {
	r.broken = cause
	r.log.Error("perception agent link lost", zap.String("method", method), zap.Error(cause))
	_ = r.conn.CloseNow()
	return fmt.Errorf("%w: %s: %w", ErrClosed, method, cause)
}

func (r *Remote) CaptureFrame(ctx context.Context) (Frame, error) {
	var res struct {
		Frame string `json:"frame"`
		PNG   []byte `json:"png"` // base64 in JSON
	}
	if err := r.call(ctx, "captureFrame", nil, &res); err != nil {
		return Frame{}, err
	}
	return Frame{Handle: res.Frame, PNG: res.PNG}, nil
}

func (r *Remote) LocateSling(ctx context.Context, f Frame) (image.Rectangle, bool, error) {
	var res struct {
		Found bool `json:"found"`
		Box   box  `json:"box"`
	}
	if err := r.call(ctx, "locateSling", frameRef{Frame: f.Handle}, &res); err != nil {
		return image.Rectangle{}, false, err
	}
	if !res.Found {
		return image.Rectangle{}, false, nil
	}
	return res.Box.rect(), true, nil
}

func (r *Remote) LocatePigs(ctx context.Context, f Frame) ([]image.Rectangle, error) {
	var res struct {
		Pigs []box `json:"pigs"`
	}
	if err := r.call(ctx, "locatePigs", frameRef{Frame: f.Handle}, &res); err != nil {
		return nil, err
	}
	pigs := make([]image.Rectangle, 0, len(res.Pigs))
	for _, b := range res.Pigs {
		pigs = append(pigs, b.rect())
	}
	return pigs, nil
}

func (r *Remote) DetectOverlay(ctx context.Context, f Frame) (bool, error) {
	var res struct {
		Present bool `json:"present"`
	}
	if err := r.call(ctx, "detectOverlay", frameRef{Frame: f.Handle}, &res); err != nil {
		return false, err
	}
	return res.Present, nil
}

func (r *Remote) Click(ctx context.Context, at image.Point) error {
	return r.call(ctx, "click", point{X: at.X, Y: at.Y}, nil)
}

func (r *Remote) Drag(ctx context.Context, shot engine.Shot) error {
	return r.call(ctx, "drag", dragParams{
		X:    shot.Origin.X,
		Y:    shot.Origin.Y,
		DX:   shot.DX,
		DY:   shot.DY,
		Drag: shot.Drag,
		Tap:  shot.TapTime,
	}, nil)
}

func (r *Remote) ZoomOut(ctx context.Context) error        { return r.call(ctx, "zoomOut", nil, nil) }
func (r *Remote) ZoomIn(ctx context.Context) error         { return r.call(ctx, "zoomIn", nil, nil) }
func (r *Remote) Resume(ctx context.Context) error         { return r.call(ctx, "resume", nil, nil) }
func (r *Remote) DismissOverlay(ctx context.Context) error { return r.call(ctx, "dismissOverlay", nil, nil) }
func (r *Remote) Restart(ctx context.Context) error        { return r.call(ctx, "restart", nil, nil) }

func (r *Remote) LoadLevel(ctx context.Context, level int) error {
	return r.call(ctx, "loadLevel", struct {
		Level int `json:"level"`
	}{Level: level}, nil)
}

func (r *Remote) ReadScore(ctx context.Context) (int, error) {
	var res struct {
		Score int `json:"score"`
	}
	if err := r.call(ctx, "readScore", nil, &res); err != nil {
		return 0, err
	}
	if res.Score < 0 {
		return 0, ErrScoreUnavailable
	}
	return res.Score, nil
}

func (r *Remote) ObserveGameState(ctx context.Context) (engine.GameState, error) {
	var res struct {
		State int32 `json:"state"`
	}
	if err := r.call(ctx, "gameState", nil, &res); err != nil {
		return engine.StateUnknown, err
	}
	return engine.ParseGameState(res.State)
}

// Close releases the agent connection. It is safe to call more than once.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.broken != nil {
		return nil
	}
	return r.conn.Close(websocket.StatusNormalClosure, "session over")
}
