package engine

import (
	"errors"
	"fmt"
)

var ErrUnknownState = errors.New("unknown game state")

// GameState codes are part of the wire protocol (reply to the state query).
type GameState int32

const (
	StateUnknown        GameState = 0
	StateMainMenu       GameState = 1
	StateEpisodeMenu    GameState = 2
	StateLevelSelection GameState = 3
	StateLoading        GameState = 4
	StatePlaying        GameState = 5
	StateWon            GameState = 6
	StateLost           GameState = 7
)

var stateNames = map[GameState]string{
	StateUnknown:        "unknown",
	StateMainMenu:       "main_menu",
	StateEpisodeMenu:    "episode_menu",
	StateLevelSelection: "level_selection",
	StateLoading:        "loading",
	StatePlaying:        "playing",
	StateWon:            "won",
	StateLost:           "lost",
}

func (g GameState) String() string {
	if name, ok := stateNames[g]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(g))
}

// Over reports whether the level has ended one way or the other.
func (g GameState) Over() bool {
	return g == StateWon || g == StateLost
}

func ParseGameState(code int32) (GameState, error) {
	g := GameState(code)
	if _, ok := stateNames[g]; !ok {
		return StateUnknown, fmt.Errorf("%w: %d", ErrUnknownState, code)
	}
	return g, nil
}

// Session is the per-connection game progress record. It is owned by exactly one
// dispatcher goroutine and is never shared between connections.
type Session struct {
	ID           string
	Score        int
	Level        int
	ActionsTaken int
	GameState    GameState
	Version      int
}

func NewSession(id string) *Session {
	return &Session{ID: id, GameState: StateUnknown}
}

// Observe records a freshly observed game state.
func (s *Session) Observe(g GameState) {
	s.GameState = g
}

// ConfirmScore stores a successful score read. Negative reads are ignored.
func (s *Session) ConfirmScore(score int) {
	if score < 0 {
		return
	}
	s.Score = score
}

// MarkLost records an authoritative loss and puts back the last good score.
func (s *Session) MarkLost(prior int) {
	s.ConfirmScore(prior)
	s.GameState = StateLost
}

// ResetProgress clears score and action count for a fresh attempt.
func (s *Session) ResetProgress() {
	s.Score = 0
	s.ActionsTaken = 0
}

// Restarted resets level progress once the game reports it is playing again.
func (s *Session) Restarted() {
	s.ResetProgress()
	s.GameState = StatePlaying
}

// Loaded is Restarted plus recording which level is now on screen.
func (s *Session) Loaded(level int) {
	s.Restarted()
	s.Level = level
}

// RecordAction counts one scoring action and reports whether it used up the
// last expected turn of the current level.
func (s *Session) RecordAction() (lastTurn bool) {
	s.ActionsTaken++
	expected := ExpectedActions(s.Level)
	return expected > 0 && s.ActionsTaken >= expected
}

// Snapshot is a copy safe to hand to other goroutines.
func (s *Session) Snapshot() Session {
	return *s
}
