package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/aibird-bridge/internal/hub"
	"github.com/DoyleJ11/aibird-bridge/internal/store"
	"github.com/DoyleJ11/aibird-bridge/internal/ws"
)

type Deps struct {
	Hub    *hub.Hub
	Store  store.Recorder
	Agents ws.Server // nil disables /ws
	Logger *zap.Logger

	// AgentOrigins are the cross-origin hosts allowed to open /ws.
	AgentOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/sessions", ListSessions(d.Hub))
	r.Get("/sessions/{id}", GetSession(d.Hub))
	r.Get("/sessions/{id}/shots", ListShots(d.Store))
	if d.Agents != nil {
		r.Get("/ws", ws.Handler(d.Agents, d.AgentOrigins, d.Logger))
	}
	return r
}
