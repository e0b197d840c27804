// Package store keeps a history of sessions and the shots fired in them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

var ErrNotFound = errors.New("session not found")

type SessionRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	RemoteAddr string
	Transport  string
	StartedAt  time.Time
	EndedAt    *time.Time
	Level      int
	FinalScore int
	FinalState int32
}

func (SessionRecord) TableName() string { return "sessions" }

type ShotRecord struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index;size:36"`
	Level       int
	Polar       bool
	Safe        bool
	DX          int
	DY          int
	TapTime     int
	OriginX     int
	OriginY     int
	ScoreBefore int
	ScoreAfter  int
	StateAfter  int32
	Mode        string
	Stable      bool
	Lost        bool
	Reads       int
	CreatedAt   time.Time
}

func (ShotRecord) TableName() string { return "shots" }

type Recorder interface {
	OpenSession(ctx context.Context, rec SessionRecord) error
	CloseSession(ctx context.Context, final engine.Session) error
	RecordShot(ctx context.Context, rec ShotRecord) error
	// Shots returns the most recent shots of a session, newest first.
	Shots(ctx context.Context, sessionID string, limit int) ([]ShotRecord, error)
	Close() error
}

func closeFields(final engine.Session, at time.Time) map[string]any {
	return map[string]any{
		"ended_at":    at,
		"level":       final.Level,
		"final_score": final.Score,
		"final_state": int32(final.GameState),
	}
}
