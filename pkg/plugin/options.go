package plugin

import (
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"scuffcommander/internal/clock"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// Options carries the dependencies shared by every connector.
type Options struct {
	Logger         *zap.Logger
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	CommandTimeout time.Duration
	Observer       Observer
	Clock          clock.Clock
	FS             afero.Fs
}

// Option configures Options.
type Option func(*Options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithTimeouts overrides the connect, request and RunCommand timeouts. Zero
// values keep the defaults.
func WithTimeouts(connect, request, command time.Duration) Option {
	return func(o *Options) {
		if connect > 0 {
			o.ConnectTimeout = connect
		}
		if request > 0 {
			o.RequestTimeout = request
		}
		if command > 0 {
			o.CommandTimeout = command
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithFS sets the filesystem the VTS token file lives on.
func WithFS(fs afero.Fs) Option {
	return func(o *Options) { o.FS = fs }
}

func newOptions(opts []Option) Options {
	o := Options{
		Logger:         zap.NewNop(),
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
		CommandTimeout: DefaultCommandTimeout,
		Observer:       nopObserver{},
		Clock:          clock.NewRealClock(),
		FS:             afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
