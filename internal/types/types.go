package types

import "time"

// SessionView is the admin API shape of a live session.
type SessionView struct {
	ID              string    `json:"id"`
	RemoteAddr      string    `json:"remote_addr"`
	Transport       string    `json:"transport"`
	StartedAt       time.Time `json:"started_at"`
	Version         int       `json:"version"`
	Level           int       `json:"level"`
	Score           int       `json:"score"`
	ActionsTaken    int       `json:"actions_taken"`
	ExpectedActions int       `json:"expected_actions,omitempty"`
	State           string    `json:"state"`
	StateCode       int32     `json:"state_code"`
	LastCommand     string    `json:"last_command,omitempty"`
}

type ShotView struct {
	ID          uint      `json:"id"`
	Level       int       `json:"level"`
	Polar       bool      `json:"polar"`
	Safe        bool      `json:"safe"`
	DX          int       `json:"dx"`
	DY          int       `json:"dy"`
	TapTime     int       `json:"tap_time"`
	OriginX     int       `json:"origin_x"`
	OriginY     int       `json:"origin_y"`
	ScoreBefore int       `json:"score_before"`
	ScoreAfter  int       `json:"score_after"`
	State       string    `json:"state"`
	Mode        string    `json:"mode,omitempty"`
	Stable      bool      `json:"stable"`
	Lost        bool      `json:"lost"`
	Reads       int       `json:"reads"`
	CreatedAt   time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
