package ws

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/aibird-bridge/internal/protocol"
)

// echoScore answers every score query with 77 until the agent sends close.
type echoScore struct {
	transport chan string
}

func (e *echoScore) Serve(ctx context.Context, conn net.Conn, transport string) error {
	defer conn.Close()
	e.transport <- transport
	for {
		cmd, err := protocol.ReadCommand(conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if _, err := conn.Write(protocol.EncodeInt(77)); err != nil {
			return err
		}
		if cmd.ID == protocol.MsgClose {
			return nil
		}
	}
}

func TestHandler_CarriesBinaryProtocol(t *testing.T) {
	srv := &echoScore{transport: make(chan string, 1)}
	ts := httptest.NewServer(Handler(srv, nil, nil))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	nc := websocket.NetConn(ctx, c, websocket.MessageBinary)
	defer nc.Close()

	require.NoError(t, protocol.WriteCommand(nc, protocol.Command{ID: protocol.MsgScore, Args: []int32{}}))
	v, err := protocol.ReadInt(nc)
	require.NoError(t, err)
	assert.Equal(t, int32(77), v)

	require.NoError(t, protocol.WriteCommand(nc, protocol.Command{ID: protocol.MsgClose, Args: []int32{}}))
	v, err = protocol.ReadInt(nc)
	require.NoError(t, err)
	assert.Equal(t, int32(77), v)

	// Server side closed after the close reply.
	_, err = protocol.ReadInt(nc)
	assert.Error(t, err)
	assert.Equal(t, "ws", <-srv.transport)
}

func TestHandler_OriginPatterns(t *testing.T) {
	cases := []struct {
		name    string
		origins []string
		wantOK  bool
	}{
		{name: "foreign origin refused by default", origins: nil, wantOK: false},
		{name: "foreign origin allowed by pattern", origins: []string{"lab.example.com"}, wantOK: true},
		{name: "pattern for another host", origins: []string{"other.example.com"}, wantOK: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := &echoScore{transport: make(chan string, 1)}
			ts := httptest.NewServer(Handler(srv, tc.origins, nil))
			defer ts.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			url := "ws" + strings.TrimPrefix(ts.URL, "http")
			c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
				HTTPHeader: http.Header{"Origin": []string{"https://lab.example.com"}},
			})
			if !tc.wantOK {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			defer c.CloseNow()
			assert.Equal(t, "ws", <-srv.transport)
		})
	}
}
