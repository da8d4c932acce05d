package wsrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type testMsg struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func matchID(msg []byte) (string, bool) {
	var m testMsg
	if err := json.Unmarshal(msg, &m); err != nil || m.ID == "" {
		return "", false
	}
	return m.ID, true
}

func mockServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_Call(t *testing.T) {
	logger := zap.NewNop()

	t.Run("routes responses by id", func(t *testing.T) {
		server := mockServer(t, func(conn *websocket.Conn) {
			for {
				var req testMsg
				if err := conn.ReadJSON(&req); err != nil {
					return
				}
				// unsolicited message first; must be ignored
				conn.WriteJSON(map[string]string{"event": "noise"})
				conn.WriteJSON(testMsg{ID: req.ID, Body: "echo:" + req.Body})
			}
		})

		ctx := context.Background()
		c, err := Dial(ctx, wsURL(server), logger)
		require.NoError(t, err)
		c.Start(matchID)
		defer c.Close()

		for _, body := range []string{"a", "b"} {
			raw, err := c.Call(ctx, "id-"+body, testMsg{ID: "id-" + body, Body: body})
			require.NoError(t, err)
			var resp testMsg
			require.NoError(t, json.Unmarshal(raw, &resp))
			assert.Equal(t, "echo:"+body, resp.Body)
		}
	})

	t.Run("times out when peer is silent", func(t *testing.T) {
		server := mockServer(t, func(conn *websocket.Conn) {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		})

		c, err := Dial(context.Background(), wsURL(server), logger)
		require.NoError(t, err)
		c.Start(matchID)
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = c.Call(ctx, "x", testMsg{ID: "x"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("fails when peer hangs up", func(t *testing.T) {
		server := mockServer(t, func(conn *websocket.Conn) {
			var req testMsg
			conn.ReadJSON(&req)
		})

		c, err := Dial(context.Background(), wsURL(server), logger)
		require.NoError(t, err)
		c.Start(matchID)
		defer c.Close()

		_, err = c.Call(context.Background(), "x", testMsg{ID: "x"})
		assert.ErrorIs(t, err, ErrClosed)

		select {
		case <-c.Done():
		case <-time.After(time.Second):
			t.Fatal("session not marked done")
		}
	})

	t.Run("call after close", func(t *testing.T) {
		server := mockServer(t, func(conn *websocket.Conn) {
			conn.ReadMessage()
		})

		c, err := Dial(context.Background(), wsURL(server), logger)
		require.NoError(t, err)
		c.Start(matchID)
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		_, err = c.Call(context.Background(), "x", testMsg{ID: "x"})
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1", zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestConn_Handshake(t *testing.T) {
	server := mockServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(testMsg{Body: "hello"})
		var m testMsg
		conn.ReadJSON(&m)
		conn.WriteJSON(testMsg{Body: "welcome " + m.Body})
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(server), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	var hello testMsg
	require.NoError(t, c.ReadJSON(ctx, &hello))
	assert.Equal(t, "hello", hello.Body)
	require.NoError(t, c.WriteJSON(ctx, testMsg{Body: "me"}))
	var welcome testMsg
	require.NoError(t, c.ReadJSON(ctx, &welcome))
	assert.Equal(t, "welcome me", welcome.Body)
}
