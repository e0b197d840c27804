// Package dispatcher runs one game session as an actor: commands go into an
// inbox and are executed one at a time by the session's own goroutine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/protocol"
)

//go:generate go tool mockgen -destination=mocks/handler_mock.go -package=mocks . Handler

var ErrStopped = errors.New("dispatcher stopped")

// Handler executes decoded commands against the game. Action methods have
// no return value because the client is always told they succeeded.
type Handler interface {
	Screenshot(ctx context.Context, s *engine.Session) ([]byte, error)
	State(ctx context.Context, s *engine.Session) engine.GameState
	Score(s *engine.Session) int
	ZoomOut(ctx context.Context, s *engine.Session)
	ZoomIn(ctx context.Context, s *engine.Session)
	RestartLevel(ctx context.Context, s *engine.Session)
	LoadLevel(ctx context.Context, s *engine.Session, level int)
	Shoot(ctx context.Context, s *engine.Session, cmd engine.ShotCommand)
	IsLevelOver(ctx context.Context, s *engine.Session) bool
	Close(ctx context.Context, s *engine.Session)
	// Err is non-nil once the device is lost. The session cannot go on.
	Err() error
}

type Msg interface{ isDispatcherMsg() }

type FromClient struct {
	Cmd   protocol.Command
	Reply chan Answer
}

func (FromClient) isDispatcherMsg() {}

type Shutdown struct{}

func (Shutdown) isDispatcherMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isDispatcherMsg() {}

// Result is what goes back on the wire for one command.
type Result struct {
	Reply []byte
	// Closed is set after the close command; the connection ends once Reply
	// has been written.
	Closed bool
}

type Answer struct {
	Result Result
	Err    error
}

// Snapshot is published after every handled command.
type Snapshot struct {
	Version int
	Session engine.Session
	Last    protocol.MessageID
}

type View struct {
	Version  int
	Session  engine.Session
	Commands int
	Closed   bool
}

type Dispatcher struct {
	inbox    chan Msg
	session  *engine.Session
	handler  Handler
	notify   func(Snapshot)
	log      *zap.Logger
	commands int
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Dispatcher)

// WithNotify registers a callback that receives a Snapshot after each command.
// It runs on the dispatcher goroutine and must not block.
func WithNotify(fn func(Snapshot)) Option {
	return func(d *Dispatcher) { d.notify = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func New(parent context.Context, s *engine.Session, h Handler, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(parent)

	d := &Dispatcher{
		inbox:   make(chan Msg, 16),
		session: s,
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}

	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case FromClient:
				res, err := d.handle(d.ctx, msg.Cmd)
				if err != nil {
					d.log.Warn("command failed", zap.Stringer("mid", msg.Cmd.ID), zap.Error(err))
				} else {
					d.log.Debug("command handled",
						zap.Stringer("mid", msg.Cmd.ID),
						zap.Int("version", d.session.Version+1),
						zap.Int("bytes", len(res.Reply)),
					)
					d.commands++
					d.session.Version++
					if res.Closed {
						d.closed = true
					}
					d.publish(msg.Cmd.ID)
				}
				msg.Reply <- Answer{Result: res, Err: err}

			case GetState:
				msg.Reply <- View{
					Version:  d.session.Version,
					Session:  d.session.Snapshot(),
					Commands: d.commands,
					Closed:   d.closed,
				}

			case Shutdown:
				d.cancel()
				return
			}
		}
	}
}

func (d *Dispatcher) publish(last protocol.MessageID) {
	if d.notify == nil {
		return
	}
	d.notify(Snapshot{Version: d.session.Version, Session: d.session.Snapshot(), Last: last})
}

func (d *Dispatcher) handle(ctx context.Context, cmd protocol.Command) (Result, error) {
	n, ok := protocol.Arity(cmd.ID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", protocol.ErrUnknownMessage, byte(cmd.ID))
	}
	if len(cmd.Args) != n {
		return Result{}, fmt.Errorf("%w: %s wants %d, got %d", protocol.ErrArity, cmd.ID, n, len(cmd.Args))
	}

	res, err := d.route(ctx, cmd)
	if err != nil || res.Closed {
		return res, err
	}
	// No reply goes out once the device is lost.
	if err := d.handler.Err(); err != nil {
		return Result{}, fmt.Errorf("%s: %w", cmd.ID, err)
	}
	return res, nil
}

func (d *Dispatcher) route(ctx context.Context, cmd protocol.Command) (Result, error) {
	s := d.session
	h := d.handler
	ok1 := protocol.EncodeInt(1)

	switch cmd.ID {
	case protocol.MsgScreenshot:
		png, err := h.Screenshot(ctx, s)
		if err != nil {
			return Result{}, fmt.Errorf("screenshot: %w", err)
		}
		return Result{Reply: protocol.EncodeScreenshot(png)}, nil

	case protocol.MsgState:
		return Result{Reply: protocol.EncodeInt(int32(h.State(ctx, s)))}, nil

	case protocol.MsgScore:
		return Result{Reply: protocol.EncodeInt(int32(h.Score(s)))}, nil

	case protocol.MsgCartShootSafe, protocol.MsgPolarShootSafe,
		protocol.MsgCartShootFast, protocol.MsgPolarShootFast:
		h.Shoot(ctx, s, shotCommand(cmd))
		return Result{Reply: ok1}, nil

	case protocol.MsgZoomOut:
		h.ZoomOut(ctx, s)
		return Result{Reply: ok1}, nil

	case protocol.MsgZoomIn:
		h.ZoomIn(ctx, s)
		return Result{Reply: ok1}, nil

	case protocol.MsgLoadLevel:
		h.LoadLevel(ctx, s, cmd.Arg(0))
		return Result{Reply: ok1}, nil

	case protocol.MsgRestartLevel:
		h.RestartLevel(ctx, s)
		return Result{Reply: ok1}, nil

	case protocol.MsgIsLevelOver:
		return Result{Reply: protocol.EncodeBool(h.IsLevelOver(ctx, s))}, nil

	case protocol.MsgClose:
		h.Close(ctx, s)
		return Result{Reply: ok1, Closed: true}, nil
	}

	// Known to the codec but not routed here.
	return Result{}, fmt.Errorf("%w: %s has no handler", protocol.ErrUnknownMessage, cmd.ID)
}

func shotCommand(cmd protocol.Command) engine.ShotCommand {
	return engine.ShotCommand{
		Polar:   cmd.ID == protocol.MsgPolarShootSafe || cmd.ID == protocol.MsgPolarShootFast,
		Safe:    cmd.ID == protocol.MsgCartShootSafe || cmd.ID == protocol.MsgPolarShootSafe,
		A:       cmd.Arg(0),
		B:       cmd.Arg(1),
		TapTime: cmd.Arg(2),
	}
}

// Dispatch hands cmd to the session goroutine and waits for its reply.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd protocol.Command) (Result, error) {
	reply := make(chan Answer, 1)
	select {
	case d.inbox <- FromClient{Cmd: cmd, Reply: reply}:
	case <-d.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case out := <-reply:
		return out.Result, out.Err
	case <-d.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// View returns a copy of the session as the dispatcher goroutine sees it.
func (d *Dispatcher) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case d.inbox <- GetState{Reply: reply}:
	case <-d.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-d.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Stop shuts the loop down and waits for it to exit. A command in flight sees
// its context cancelled.
func (d *Dispatcher) Stop() {
	d.cancel()
	<-d.done
}

// Expose the inbox so tests or transports can send messages directly.
func (d *Dispatcher) Inbox() chan<- Msg { return d.inbox }

func (d *Dispatcher) Done() <-chan struct{} { return d.done }
