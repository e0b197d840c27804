// Package ws carries the binary agent protocol over a websocket, for agents
// that can only reach the bridge through HTTP.
package ws

import (
	"context"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Server is the part of the bridge the handler needs.
type Server interface {
	Serve(ctx context.Context, conn net.Conn, transport string) error
}

// Handler upgrades the request and serves one session on it. Each binary
// message holds a slice of the same byte stream a TCP agent would send.
// Browser requests from another host are refused unless their origin matches
// one of origins (host patterns such as "lab.example.com" or "localhost:*").
func Handler(srv Server, origins []string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		// Closing the NetConn sends a normal closure; this only covers panics.
		defer conn.CloseNow()

		nc := websocket.NetConn(r.Context(), conn, websocket.MessageBinary)
		if err := srv.Serve(r.Context(), nc, "ws"); err != nil {
			log.Debug("websocket session ended with error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		}
	}
}
