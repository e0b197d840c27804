// Package bridge accepts agent connections and runs one game session per
// connection: decode a command, dispatch it, write the reply, repeat.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/aibird-bridge/internal/device"
	"github.com/DoyleJ11/aibird-bridge/internal/dispatcher"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/executor"
	"github.com/DoyleJ11/aibird-bridge/internal/hub"
	"github.com/DoyleJ11/aibird-bridge/internal/outcome"
	"github.com/DoyleJ11/aibird-bridge/internal/poll"
	"github.com/DoyleJ11/aibird-bridge/internal/protocol"
	"github.com/DoyleJ11/aibird-bridge/internal/store"
)

type Config struct {
	Outcome  outcome.Config
	Executor executor.Config
}

func DefaultConfig() Config {
	return Config{Outcome: outcome.DefaultConfig(), Executor: executor.DefaultConfig()}
}

type Deps struct {
	Hub      *hub.Hub
	Opener   device.Opener
	Recorder store.Recorder // optional
	Clock    poll.Clock     // optional
	Logger   *zap.Logger    // optional
}

type Bridge struct {
	hub    *hub.Hub
	opener device.Opener
	rec    store.Recorder
	clock  poll.Clock
	cfg    Config
	log    *zap.Logger
	newID  func() string
	wg     sync.WaitGroup
}

func New(d Deps, cfg Config) *Bridge {
	b := &Bridge{
		hub:    d.Hub,
		opener: d.Opener,
		rec:    d.Recorder,
		clock:  d.Clock,
		cfg:    cfg,
		log:    d.Logger,
		newID:  uuid.NewString,
	}
	if b.clock == nil {
		b.clock = poll.RealClock()
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	return b
}

// ListenAndServe accepts TCP connections on addr until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return b.ServeListener(ctx, ln)
}

// ServeListener owns ln and closes it when ctx is done. It returns after all
// sessions it started have ended.
func (b *Bridge) ServeListener(ctx context.Context, ln net.Listener) error {
	b.log.Info("accepting agents", zap.Stringer("addr", ln.Addr()))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := b.Serve(ctx, conn, "tcp"); err != nil {
				b.log.Warn("session ended with error",
					zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			}
		}()
	}

	b.wg.Wait()
	return acceptErr
}

// Serve runs one session on conn and closes it before returning. A nil error
// means the agent closed the session or hung up.
func (b *Bridge) Serve(ctx context.Context, conn net.Conn, transport string) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeOnce sync.Once
	var closeErr error
	closeConn := func() error {
		closeOnce.Do(func() { closeErr = conn.Close() })
		return closeErr
	}
	defer func() { err = multierr.Append(err, closeConn()) }()

	id := b.newID()
	remote := conn.RemoteAddr().String()
	log := b.log.With(zap.String("session", id), zap.String("remote", remote), zap.String("transport", transport))

	if err := b.hub.Register(ctx, id, remote, transport, cancel); err != nil {
		log.Warn("refusing agent", zap.Error(err))
		return err
	}

	dev, err := b.opener.Open(ctx)
	if err != nil {
		b.hub.Unregister(id)
		log.Error("opening device failed", zap.Error(err))
		return fmt.Errorf("open device: %w", err)
	}

	s := engine.NewSession(id)
	if b.rec != nil {
		if err := b.rec.OpenSession(ctx, store.SessionRecord{ID: id, RemoteAddr: remote, Transport: transport}); err != nil {
			log.Warn("recording session start failed", zap.Error(err))
		}
	}

	x := executor.New(executor.Deps{
		Device:   dev,
		Settler:  outcome.New(dev, b.cfg.Outcome, b.clock, log),
		Recorder: b.rec,
		Clock:    b.clock,
		Logger:   log,
	}, b.cfg.Executor)
	d := dispatcher.New(ctx, s, x,
		dispatcher.WithNotify(b.hub.Notify(id)),
		dispatcher.WithLogger(log),
	)

	log.Info("session started")

	// end tears the session down and frees its hub slot. It runs before the
	// Close reply is written, so an agent that reconnects at once is admitted.
	var endOnce sync.Once
	var endErr error
	end := func() error {
		endOnce.Do(func() { endErr = b.end(ctx, id, s, d, x, log) })
		return endErr
	}
	defer func() { err = multierr.Append(err, end()) }()

	// Unblock the read below when the session is cancelled from outside.
	stopWatch := context.AfterFunc(ctx, func() { _ = closeConn() })
	defer stopWatch()

	return b.loop(ctx, conn, d, end, log)
}

func (b *Bridge) end(ctx context.Context, id string, s *engine.Session, d *dispatcher.Dispatcher, x *executor.Executor, log *zap.Logger) error {
	d.Stop()
	// The dispatcher goroutine has exited, s is ours again.
	final := s.Snapshot()
	err := x.Release()
	if b.rec != nil {
		if cerr := b.rec.CloseSession(context.WithoutCancel(ctx), final); cerr != nil {
			log.Warn("recording session end failed", zap.Error(cerr))
		}
	}
	b.hub.Unregister(id)
	log.Info("session ended",
		zap.Int("level", final.Level),
		zap.Int("score", final.Score),
		zap.Stringer("state", final.GameState),
		zap.Int("commands", final.Version),
	)
	return err
}

func (b *Bridge) loop(ctx context.Context, conn net.Conn, d *dispatcher.Dispatcher, end func() error, log *zap.Logger) error {
	r := bufio.NewReader(conn)
	for {
		cmd, err := protocol.ReadCommand(r)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("protocol error, closing connection", zap.Error(err))
			return err
		}

		res, err := d.Dispatch(ctx, cmd)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("command failed, closing connection", zap.Stringer("mid", cmd.ID), zap.Error(err))
			return err
		}

		if res.Closed {
			_ = end()
		}
		if _, err := conn.Write(res.Reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write %s reply: %w", cmd.ID, err)
		}
		if res.Closed {
			log.Debug("agent closed the session")
			return nil
		}
	}
}
