// Package outcome decides when the effect of a shot has settled. The score
// and game state are only visible through repeated screen reads, so it polls
// them until they stop changing or the level ends.
package outcome

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/aibird-bridge/internal/device"
	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/poll"
)

type Mode int

const (
	// ModeStability waits for StableReads consecutive equal score reads.
	ModeStability Mode = iota
	// ModeTerminal is used on the last bird: wait for the level to end.
	ModeTerminal
)

func (m Mode) String() string {
	if m == ModeTerminal {
		return "terminal"
	}
	return "stability"
}

type Config struct {
	SettleDelay       time.Duration
	PollInterval      time.Duration
	StableReads       int
	MaxReads          int
	StateWaitAttempts int
}

func DefaultConfig() Config {
	return Config{
		SettleDelay:       2 * time.Second,
		PollInterval:      300 * time.Millisecond,
		StableReads:       3,
		MaxReads:          200,
		StateWaitAttempts: 200,
	}
}

// Perception is the part of a device the engine reads from.
type Perception interface {
	device.Camera
	device.Vision
	device.Scoreboard
}

type Outcome struct {
	Mode    Mode
	Stable  bool
	Lost    bool
	Cleared bool // no pigs left and the game reported WON
	Reads   int
	Score   int
	State   engine.GameState
	Err     error
}

type Engine struct {
	dev   Perception
	cfg   Config
	clock poll.Clock
	log   *zap.Logger
}

func New(dev Perception, cfg Config, clock poll.Clock, log *zap.Logger) *Engine {
	if clock == nil {
		clock = poll.RealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StableReads <= 0 {
		cfg.StableReads = 1
	}
	return &Engine{dev: dev, cfg: cfg, clock: clock, log: log}
}

func (e *Engine) poller(attempts int) poll.Poller {
	return poll.Poller{Interval: e.cfg.PollInterval, MaxAttempts: attempts, Clock: e.clock}
}

// Settle runs after a scoring shot was released. It updates s in place and
// never returns an error to its caller; problems end up in Outcome.Err.
func (e *Engine) Settle(ctx context.Context, s *engine.Session) Outcome {
	var out Outcome

	slept := e.clock.Sleep(ctx, e.cfg.SettleDelay)
	if s.RecordAction() {
		out.Mode = ModeTerminal
	}

	switch {
	case slept != nil:
		out.Err = slept
	case out.Mode == ModeTerminal:
		out.Err = e.terminalWait(ctx, s, &out)
	default:
		out.Err = e.stabilityWait(ctx, s, &out)
	}

	out.Score = s.Score
	out.State = s.GameState
	return out
}

func (e *Engine) terminalWait(ctx context.Context, s *engine.Session, out *Outcome) error {
	return e.poller(e.cfg.MaxReads).Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		out.Reads++
		score, err := e.dev.ReadScore(ctx)
		if err != nil {
			if abort := fatal(ctx, err); abort != nil {
				return false, abort
			}
			e.lost(s, out, s.Score, err)
			return true, nil
		}
		s.ConfirmScore(score)

		state, err := e.dev.ObserveGameState(ctx)
		if err != nil {
			e.log.Debug("state read failed while waiting for level end", zap.Error(err))
			return false, fatal(ctx, err)
		}
		s.Observe(state)
		return state != engine.StatePlaying, nil
	})
}

func (e *Engine) stabilityWait(ctx context.Context, s *engine.Session, out *Outcome) error {
	prev := s.Score
	same := 0

	err := e.poller(e.cfg.MaxReads).Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		out.Reads++
		score, err := e.dev.ReadScore(ctx)
		if err != nil {
			if abort := fatal(ctx, err); abort != nil {
				return false, abort
			}
			e.lost(s, out, prev, err)
			return true, nil
		}

		if score == prev {
			same++
		} else {
			same = 0
		}
		prev = score
		s.ConfirmScore(score)
		return same >= e.cfg.StableReads, nil
	})
	if err != nil || out.Lost {
		return err
	}

	out.Stable = true
	return e.awaitClear(ctx, s, out)
}

// awaitClear handles the shot that killed the last pig: the game shows the
// win screen a little later, and only then is the final score trustworthy.
func (e *Engine) awaitClear(ctx context.Context, s *engine.Session, out *Outcome) error {
	frame, err := e.dev.CaptureFrame(ctx)
	if err != nil {
		e.log.Warn("capture after stable score failed", zap.Error(err))
		return fatal(ctx, err)
	}
	pigs, err := e.dev.LocatePigs(ctx, frame)
	if err != nil {
		e.log.Warn("pig lookup after stable score failed", zap.Error(err))
		return fatal(ctx, err)
	}
	if len(pigs) > 0 {
		return nil
	}

	err = e.poller(e.cfg.StateWaitAttempts).Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		state, err := e.dev.ObserveGameState(ctx)
		if err != nil {
			return false, fatal(ctx, err)
		}
		s.Observe(state)
		return state == engine.StateWon, nil
	})
	if err != nil {
		return err
	}
	out.Cleared = true

	score, err := e.dev.ReadScore(ctx)
	if err != nil {
		e.log.Warn("final score read failed", zap.Error(err))
		return fatal(ctx, err)
	}
	s.ConfirmScore(score)
	return nil
}

// fatal returns the error that must end the wait: cancellation, or a device
// that can no longer answer. Anything else is left to the caller.
func fatal(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, device.ErrClosed) {
		return err
	}
	return nil
}

func (e *Engine) lost(s *engine.Session, out *Outcome, prior int, cause error) {
	out.Lost = true
	s.MarkLost(prior)
	lvl := zap.DebugLevel
	if !errors.Is(cause, device.ErrScoreUnavailable) {
		lvl = zap.WarnLevel
	}
	e.log.Check(lvl, "score read failed, treating as loss").Write(
		zap.Error(cause),
		zap.Int("score", s.Score),
		zap.Int("actions", s.ActionsTaken),
	)
}
