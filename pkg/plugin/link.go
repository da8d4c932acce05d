package plugin

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type client interface {
	Close() error
}

// link is the connection state shared by the networked connectors: either a
// live client handle or none. The mutex is held for a whole request, so one
// connector never has two requests in flight. Any request error drops the
// handle and the next request dials again.
type link[C client] struct {
	typ    Type
	dial   func(ctx context.Context) (C, error)
	opts   Options
	logger *zap.Logger

	mu   sync.Mutex
	conn C
	// live is written under mu and read without it, so status checks never
	// wait behind a request in flight.
	live atomic.Bool
}

func newLink[C client](typ Type, dial func(context.Context) (C, error), opts Options) *link[C] {
	return &link[C]{
		typ:    typ,
		dial:   dial,
		opts:   opts,
		logger: opts.Logger.With(zap.String("plugin", string(typ))),
	}
}

// connect dials if there is no live handle.
func (l *link[C]) connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked(ctx)
}

func (l *link[C]) connectLocked(ctx context.Context) error {
	if l.live.Load() {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	conn, err := l.dial(dialCtx)
	l.opts.Observer.ConnectAttempt(l.typ, err)
	if err != nil {
		l.logger.Warn("Connection attempt failed", zap.Error(err))
		return &ConnectionError{Type: l.typ, Err: err}
	}

	l.conn = conn
	l.live.Store(true)
	l.logger.Info("Connected")
	return nil
}

// do runs fn against a live handle, connecting first if needed. A failed fn
// invalidates the handle unless ctx itself is done, in which case the handle
// is kept and ctx.Err() is returned.
func (l *link[C]) do(ctx context.Context, op string, fn func(ctx context.Context, conn C) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.connectLocked(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.opts.RequestTimeout)
	defer cancel()

	if err := fn(reqCtx, l.conn); err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("Request abandoned by caller", zap.String("op", op), zap.Error(err))
			return ctx.Err()
		}
		l.invalidateLocked(op, err)
		return &RequestError{Type: l.typ, Op: op, Err: err}
	}
	return nil
}

func (l *link[C]) invalidateLocked(op string, cause error) {
	l.logger.Warn("Request failed, dropping connection", zap.String("op", op), zap.Error(cause))
	if err := l.conn.Close(); err != nil {
		l.logger.Debug("Error closing connection", zap.Error(err))
	}
	var zero C
	l.conn = zero
	l.live.Store(false)
}

// connected reports whether a live handle is held. It does not probe the peer.
func (l *link[C]) connected() bool {
	return l.live.Load()
}

func (l *link[C]) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.live.Load() {
		return nil
	}
	err := l.conn.Close()
	var zero C
	l.conn = zero
	l.live.Store(false)
	return err
}

// call is do for operations that return a value.
func call[C client, T any](ctx context.Context, l *link[C], op string, fn func(ctx context.Context, conn C) (T, error)) (T, error) {
	var out T
	err := l.do(ctx, op, func(ctx context.Context, conn C) error {
		v, err := fn(ctx, conn)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
