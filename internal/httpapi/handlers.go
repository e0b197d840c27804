package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
	"github.com/DoyleJ11/aibird-bridge/internal/hub"
	"github.com/DoyleJ11/aibird-bridge/internal/store"
	"github.com/DoyleJ11/aibird-bridge/internal/types"
)

const (
	defaultShotLimit = 50
	maxShotLimit     = 1000
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func sessionView(e hub.Entry) types.SessionView {
	s := e.Snapshot.Session
	v := types.SessionView{
		ID:              e.ID,
		RemoteAddr:      e.RemoteAddr,
		Transport:       e.Transport,
		StartedAt:       e.StartedAt,
		Version:         e.Snapshot.Version,
		Level:           s.Level,
		Score:           s.Score,
		ActionsTaken:    s.ActionsTaken,
		ExpectedActions: engine.ExpectedActions(s.Level),
		State:           s.GameState.String(),
		StateCode:       int32(s.GameState),
	}
	if e.Snapshot.Version > 0 {
		v.LastCommand = e.Snapshot.Last.String()
	}
	return v
}

func shotView(r store.ShotRecord) types.ShotView {
	return types.ShotView{
		ID:          r.ID,
		Level:       r.Level,
		Polar:       r.Polar,
		Safe:        r.Safe,
		DX:          r.DX,
		DY:          r.DY,
		TapTime:     r.TapTime,
		OriginX:     r.OriginX,
		OriginY:     r.OriginY,
		ScoreBefore: r.ScoreBefore,
		ScoreAfter:  r.ScoreAfter,
		State:       engine.GameState(r.StateAfter).String(),
		Mode:        r.Mode,
		Stable:      r.Stable,
		Lost:        r.Lost,
		Reads:       r.Reads,
		CreatedAt:   r.CreatedAt,
	}
}

func ListSessions(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.List(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		out := make([]types.SessionView, 0, len(entries))
		for _, e := range entries {
			out = append(out, sessionView(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if e == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, sessionView(*e))
	}
}

// ListShots serves the recorded shots of a session, live or finished.
func ListShots(rec store.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultShotLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxShotLimit)
		}

		shots, err := rec.Shots(r.Context(), chi.URLParam(r, "id"), limit)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load shots")
			return
		}

		out := make([]types.ShotView, 0, len(shots))
		for _, s := range shots {
			out = append(out, shotView(s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
