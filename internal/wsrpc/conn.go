// Package wsrpc is the request/response session shared by the OBS and VTube
// Studio clients: one websocket, a serialized writer, a background reader and
// a table of callers waiting for the response carrying their request ID.
package wsrpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned by Call once the session has ended.
var ErrClosed = errors.New("connection closed")

// MatchFunc extracts the request ID a response answers. Messages for which it
// returns false (events, unsolicited pushes) are dropped.
type MatchFunc func(msg []byte) (id string, ok bool)

// Conn is a websocket session. Handshake messages are exchanged with
// ReadJSON/WriteJSON; after Start only Call may be used.
type Conn struct {
	conn   *websocket.Conn
	logger *zap.Logger
	match  MatchFunc

	writeMu sync.Mutex // Protects websocket writes

	pending   map[string]chan []byte
	pendingMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial opens a websocket to url. ctx bounds the dial only.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	return &Conn{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan []byte),
		done:    make(chan struct{}),
	}, nil
}

// ReadJSON reads one message during the handshake, honouring ctx's deadline.
func (c *Conn) ReadJSON(ctx context.Context, v any) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	return c.conn.ReadJSON(v)
}

// WriteJSON writes one message, honouring ctx's deadline.
func (c *Conn) WriteJSON(ctx context.Context, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.WriteJSON(v)
}

// Start launches the background reader. It must be called once, after the
// handshake.
func (c *Conn) Start(match MatchFunc) {
	c.match = match
	go c.receiveMessages()
}

// Call sends req and waits for the response matched to id.
func (c *Conn) Call(ctx context.Context, id string, req any) ([]byte, error) {
	respChan := make(chan []byte, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	select {
	case <-c.done:
		return nil, c.closedErr()
	default:
	}

	if err := c.WriteJSON(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for response: %w", ctx.Err())
	case <-c.done:
		return nil, c.closedErr()
	}
}

// Done is closed when the session ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close ends the session. It is safe to call more than once.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.shutdown(ErrClosed)
	return nil
}

func (c *Conn) closedErr() error {
	if c.err == nil || errors.Is(c.err, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		c.conn.Close()
	})
}

// receiveMessages routes responses to waiting callers until the socket fails.
func (c *Conn) receiveMessages() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("Connection lost", zap.Error(err))
			}
			c.shutdown(err)
			return
		}

		id, ok := c.match(data)
		if !ok {
			continue
		}

		c.pendingMu.Lock()
		ch, found := c.pending[id]
		c.pendingMu.Unlock()
		if !found {
			c.logger.Debug("Dropping response with no caller", zap.String("request_id", id))
			continue
		}
		select {
		case ch <- data:
		default:
			c.logger.Warn("Response channel full", zap.String("request_id", id))
		}
	}
}
