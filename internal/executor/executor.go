// Package executor turns decoded commands into calls against the
// actuation/perception device.
//
// Actions that change the game (shots, zoom, level changes) always report
// success to the client. Their real effect is only visible through later
// state and score queries, which read the session this package updates.
package executor

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/aibird-bridge/internal/device"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/outcome"
	"github.com/DoyleJ11/aibird-bridge/internal/poll"
	"github.com/DoyleJ11/aibird-bridge/internal/store"
)

var ErrSlingNotFound = errors.New("sling not found")

// Where the confirmation click after a level load lands.
var confirmClick = image.Pt(100, 100)

type Settler interface {
	Settle(ctx context.Context, s *engine.Session) outcome.Outcome
}

type Config struct {
	PollInterval      time.Duration
	StateWaitAttempts int
	// SlingRetryLimit caps the resume-and-look-again loop used to find the
	// sling and to get past the eagle overlay. Keep it very large.
	SlingRetryLimit int
	ClickDelay      time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      300 * time.Millisecond,
		StateWaitAttempts: 200,
		SlingRetryLimit:   1_000_000,
		ClickDelay:        10 * time.Millisecond,
	}
}

type Deps struct {
	Device   device.Device
	Settler  Settler
	Recorder store.Recorder // optional
	Clock    poll.Clock     // optional
	Logger   *zap.Logger    // optional
}

type Executor struct {
	dev    device.Device
	settle Settler
	rec    store.Recorder
	clock  poll.Clock
	cfg    Config
	log    *zap.Logger

	releaseOnce sync.Once
	releaseErr  error

	// fatal is the first error showing the device can no longer answer.
	fatal error
}

func New(d Deps, cfg Config) *Executor {
	x := &Executor{
		dev:    d.Device,
		settle: d.Settler,
		rec:    d.Recorder,
		clock:  d.Clock,
		cfg:    cfg,
		log:    d.Logger,
	}
	if x.clock == nil {
		x.clock = poll.RealClock()
	}
	if x.log == nil {
		x.log = zap.NewNop()
	}
	return x
}

// Err reports the device failure that ended this session, if any. Once set,
// the session cannot continue and must be torn down.
func (x *Executor) Err() error { return x.fatal }

// broken reports whether err means the device link is gone, remembering the
// first such error.
func (x *Executor) broken(err error) bool {
	if !errors.Is(err, device.ErrClosed) {
		return false
	}
	if x.fatal == nil {
		x.fatal = err
	}
	return true
}

func (x *Executor) poller(interval time.Duration, attempts int) poll.Poller {
	return poll.Poller{Interval: interval, MaxAttempts: attempts, Clock: x.clock}
}

// Screenshot returns PNG bytes of a frame without the eagle overlay.
func (x *Executor) Screenshot(ctx context.Context, s *engine.Session) ([]byte, error) {
	f, err := x.cleanFrame(ctx)
	if err != nil {
		return nil, err
	}
	return f.PNG, nil
}

// cleanFrame captures until no eagle overlay is detected, dismissing it and
// zooming out in between.
func (x *Executor) cleanFrame(ctx context.Context) (device.Frame, error) {
	var frame device.Frame
	err := x.poller(0, x.cfg.SlingRetryLimit).Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		f, err := x.dev.CaptureFrame(ctx)
		if err != nil {
			return false, err
		}
		eagle, err := x.dev.DetectOverlay(ctx, f)
		if err != nil {
			if x.broken(err) {
				return false, err
			}
			x.log.Warn("overlay detection failed, using frame as is", zap.Error(err))
			frame = f
			return true, nil
		}
		if !eagle {
			frame = f
			return true, nil
		}

		x.log.Debug("eagle overlay on screen, dismissing", zap.Int("attempt", attempt))
		if err := x.dev.DismissOverlay(ctx); err != nil {
			if x.broken(err) {
				return false, err
			}
			x.log.Warn("dismiss overlay failed", zap.Error(err))
		}
		if err := x.dev.ZoomOut(ctx); err != nil {
			if x.broken(err) {
				return false, err
			}
			x.log.Warn("zoom out failed", zap.Error(err))
		}
		return false, nil
	})
	x.broken(err)
	return frame, err
}

// slingReference finds the launch point, resuming the game between attempts
// when the sling is hidden. Perception errors count as a miss; only a lost
// device or cancellation stops the search early.
func (x *Executor) slingReference(ctx context.Context) (image.Point, error) {
	ref := engine.NoReference
	err := x.poller(0, x.cfg.SlingRetryLimit).Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		if attempt > 1 {
			if err := x.dev.Resume(ctx); err != nil {
				if x.broken(err) {
					return false, err
				}
				x.log.Debug("resume failed", zap.Error(err))
			}
		}
		f, err := x.cleanFrame(ctx)
		if err != nil {
			if x.broken(err) || ctx.Err() != nil {
				return false, err
			}
			x.log.Warn("capture for sling lookup failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return false, nil
		}
		box, ok, err := x.dev.LocateSling(ctx, f)
		if err != nil {
			if x.broken(err) || ctx.Err() != nil {
				return false, err
			}
			x.log.Warn("sling lookup failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return false, nil
		}
		if !ok {
			return false, nil
		}
		ref = engine.ReferencePoint(box)
		return ref != engine.NoReference, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return engine.NoReference, ErrSlingNotFound
	}
	return ref, err
}

// State observes the game state. When the device cannot tell, the last known
// state is reported instead (StateUnknown if none was ever observed).
func (x *Executor) State(ctx context.Context, s *engine.Session) engine.GameState {
	g, err := x.dev.ObserveGameState(ctx)
	if err != nil {
		x.broken(err)
		x.log.Warn("state observation failed", zap.Error(err), zap.Stringer("last", s.GameState))
		return s.GameState
	}
	s.Observe(g)
	return g
}

func (x *Executor) Score(s *engine.Session) int {
	return s.Score
}

func (x *Executor) ZoomOut(ctx context.Context, s *engine.Session) {
	if err := x.dev.ZoomOut(ctx); err != nil {
		x.broken(err)
		x.log.Warn("zoom out failed", zap.Error(err))
	}
}

func (x *Executor) ZoomIn(ctx context.Context, s *engine.Session) {
	if err := x.dev.ZoomIn(ctx); err != nil {
		x.broken(err)
		x.log.Warn("zoom in failed", zap.Error(err))
	}
}

func (x *Executor) waitForPlaying(ctx context.Context, s *engine.Session) error {
	return x.poller(x.cfg.PollInterval, x.cfg.StateWaitAttempts).Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		g, err := x.dev.ObserveGameState(ctx)
		if err != nil {
			if x.broken(err) {
				return false, err
			}
			return false, ctx.Err()
		}
		s.Observe(g)
		return g == engine.StatePlaying, nil
	})
}

func (x *Executor) RestartLevel(ctx context.Context, s *engine.Session) {
	if err := x.dev.Restart(ctx); err != nil {
		x.broken(err)
		x.log.Warn("restart failed", zap.Error(err))
	}
	if err := x.waitForPlaying(ctx, s); err != nil {
		x.log.Warn("level did not come back to playing after restart",
			zap.Error(err), zap.Stringer("state", s.GameState))
		s.ResetProgress()
		return
	}
	s.Restarted()
	x.log.Info("level restarted", zap.Int("level", s.Level))
}

func (x *Executor) LoadLevel(ctx context.Context, s *engine.Session, level int) {
	if err := x.dev.LoadLevel(ctx, level); err != nil {
		x.broken(err)
		x.log.Warn("load level failed", zap.Int("level", level), zap.Error(err))
	}
	err := x.waitForPlaying(ctx, s)
	if err == nil {
		err = x.clock.Sleep(ctx, x.cfg.ClickDelay)
	}
	if err != nil {
		x.log.Warn("level did not reach playing after load",
			zap.Int("level", level), zap.Error(err), zap.Stringer("state", s.GameState))
		s.ResetProgress()
		s.Level = level
		return
	}
	if err := x.dev.Click(ctx, confirmClick); err != nil {
		x.broken(err)
		x.log.Warn("confirm click failed", zap.Error(err))
	}
	s.Loaded(level)
	x.log.Info("level loaded", zap.Int("level", level), zap.Int("birds", engine.ExpectedActions(level)))
}

// Shoot fires one bird. A safe shot also waits for the outcome to settle
// before returning; a fast one returns right after the release. Either way
// the caller replies success.
func (x *Executor) Shoot(ctx context.Context, s *engine.Session, cmd engine.ShotCommand) {
	dx, dy := cmd.Displacement()
	log := x.log.With(
		zap.Bool("safe", cmd.Safe),
		zap.Bool("polar", cmd.Polar),
		zap.Int("dx", dx),
		zap.Int("dy", dy),
		zap.Int("tap", cmd.TapTime),
	)

	origin, err := x.slingReference(ctx)
	if err != nil {
		log.Warn("shot skipped, no sling", zap.Error(err))
		return
	}

	shot := engine.NewShot(origin, dx, dy, cmd.TapTime)
	before := s.Score
	if err := x.dev.Drag(ctx, shot); err != nil {
		x.broken(err)
		log.Warn("drag failed", zap.Error(err))
		return
	}

	rec := store.ShotRecord{
		SessionID:   s.ID,
		Level:       s.Level,
		Polar:       cmd.Polar,
		Safe:        cmd.Safe,
		DX:          dx,
		DY:          dy,
		TapTime:     cmd.TapTime,
		OriginX:     origin.X,
		OriginY:     origin.Y,
		ScoreBefore: before,
		ScoreAfter:  s.Score,
		StateAfter:  int32(s.GameState),
	}

	if cmd.Safe {
		out := x.settle.Settle(ctx, s)
		rec.ScoreAfter = out.Score
		rec.StateAfter = int32(out.State)
		rec.Mode = out.Mode.String()
		rec.Stable = out.Stable
		rec.Lost = out.Lost
		rec.Reads = out.Reads

		fields := []zap.Field{
			zap.Stringer("mode", out.Mode),
			zap.Int("score", out.Score),
			zap.Int("gained", out.Score-before),
			zap.Stringer("state", out.State),
			zap.Int("reads", out.Reads),
			zap.Int("actions", s.ActionsTaken),
		}
		if out.Err != nil {
			x.broken(out.Err)
			log.Warn("shot outcome did not settle", append(fields, zap.Error(out.Err))...)
		} else {
			log.Info("shot settled", fields...)
		}
	} else {
		log.Debug("fast shot released")
	}

	x.record(ctx, rec)
}

func (x *Executor) record(ctx context.Context, rec store.ShotRecord) {
	if x.rec == nil {
		return
	}
	if err := x.rec.RecordShot(ctx, rec); err != nil {
		x.log.Warn("recording shot failed", zap.Error(err))
	}
}

// IsLevelOver is true once the game left PLAYING or no pigs are left.
func (x *Executor) IsLevelOver(ctx context.Context, s *engine.Session) bool {
	if x.State(ctx, s) != engine.StatePlaying {
		return true
	}
	f, err := x.dev.CaptureFrame(ctx)
	if err != nil {
		x.broken(err)
		x.log.Warn("capture for level-over check failed", zap.Error(err))
		return false
	}
	pigs, err := x.dev.LocatePigs(ctx, f)
	if err != nil {
		x.broken(err)
		x.log.Warn("pig lookup failed", zap.Error(err))
		return false
	}
	return len(pigs) == 0
}

// Close releases the device on behalf of the client.
func (x *Executor) Close(ctx context.Context, s *engine.Session) {
	if err := x.Release(); err != nil {
		x.log.Warn("releasing device failed", zap.Error(err))
	}
}

// Release closes the device exactly once; later calls return the first result.
func (x *Executor) Release() error {
	x.releaseOnce.Do(func() {
		x.releaseErr = x.dev.Close()
	})
	return x.releaseErr
}
