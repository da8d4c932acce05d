package plugin

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Connector drives one control surface. Implementations serialize their own
// requests and are safe for concurrent use.
type Connector interface {
	Type() Type
	Run(ctx context.Context, a Action) error
	Query(ctx context.Context, q Query) (string, error)
	Connected() bool
	Close() error
}

// Config is one entry of the plugins list. Exactly the section matching Type
// is read.
type Config struct {
	Type Type       `mapstructure:"type" json:"type" yaml:"type" validate:"required,oneof=OBS VTS General"`
	OBS  *OBSConfig `mapstructure:"obs" json:"obs,omitempty" yaml:"obs,omitempty" validate:"required_if=Type OBS"`
	VTS  *VTSConfig `mapstructure:"vts" json:"vts,omitempty" yaml:"vts,omitempty" validate:"required_if=Type VTS"`
}

// Factory builds a connector from its configuration. It must not fail on an
// unreachable peer, only on a config it cannot use.
type Factory func(ctx context.Context, cfg Config, opts Options) (Connector, error)

var factories = map[Type]Factory{
	TypeOBS: func(ctx context.Context, cfg Config, o Options) (Connector, error) {
		if cfg.OBS == nil {
			return nil, fmt.Errorf("missing obs settings")
		}
		return NewOBSConnector(ctx, *cfg.OBS, withOptions(o)), nil
	},
	TypeVTS: func(ctx context.Context, cfg Config, o Options) (Connector, error) {
		if cfg.VTS == nil {
			return nil, fmt.Errorf("missing vts settings")
		}
		return NewVTSConnector(ctx, *cfg.VTS, withOptions(o)), nil
	},
	TypeGeneral: func(_ context.Context, _ Config, o Options) (Connector, error) {
		return NewGeneralConnector(withOptions(o)), nil
	},
}

func withOptions(o Options) Option {
	return func(dst *Options) { *dst = o }
}

// Status reports the connection state of one configured plugin.
type Status struct {
	Type      Type `json:"type"`
	Connected bool `json:"connected"`
}

// Registry maps each configured plugin type to its connector. The map is
// fixed at construction; only the connectors' own state changes afterwards.
type Registry struct {
	connectors map[Type]Connector
	logger     *zap.Logger
	observer   Observer
}

// NewRegistry builds a connector for every config entry, attempting each
// first connection concurrently. It never fails: unreachable peers leave a
// disconnected connector and unusable entries are logged and skipped. When a
// type appears more than once the last entry wins.
func NewRegistry(ctx context.Context, configs []Config, opts ...Option) *Registry {
	o := newOptions(opts)

	latest := make(map[Type]Config, len(configs))
	var order []Type
	for _, cfg := range configs {
		if _, dup := latest[cfg.Type]; dup {
			o.Logger.Warn("Duplicate plugin configuration, using the last one", zap.String("plugin", string(cfg.Type)))
		} else {
			order = append(order, cfg.Type)
		}
		latest[cfg.Type] = cfg
	}

	built := make([]Connector, len(order))
	var g errgroup.Group
	for i, t := range order {
		g.Go(func() error {
			factory, ok := factories[t]
			if !ok {
				o.Logger.Error("Unknown plugin type", zap.String("plugin", string(t)))
				return nil
			}
			conn, err := factory(ctx, latest[t], o)
			if err != nil {
				o.Logger.Error("Invalid plugin configuration", zap.String("plugin", string(t)), zap.Error(err))
				return nil
			}
			built[i] = conn
			return nil
		})
	}
	_ = g.Wait()

	r := newRegistry(o)
	for _, conn := range built {
		if conn != nil {
			r.connectors[conn.Type()] = conn
		}
	}
	o.Logger.Info("Plugin registry ready", zap.Int("plugins", len(r.connectors)))
	return r
}

// NewRegistryWith assembles a registry from already built connectors. A later
// connector replaces an earlier one of the same type.
func NewRegistryWith(conns []Connector, opts ...Option) *Registry {
	r := newRegistry(newOptions(opts))
	for _, conn := range conns {
		r.connectors[conn.Type()] = conn
	}
	return r
}

func newRegistry(o Options) *Registry {
	return &Registry{
		connectors: make(map[Type]Connector),
		logger:     o.Logger,
		observer:   o.Observer,
	}
}

// Dispatch routes a to the connector for its plugin type.
func (r *Registry) Dispatch(ctx context.Context, a Action) error {
	if a == nil {
		return fmt.Errorf("missing plugin action")
	}
	t := a.RequiredType()
	conn, ok := r.connectors[t]
	if !ok {
		err := &NotConfiguredError{Type: t}
		r.observer.Dispatched(t, ActionKind(a), err)
		return err
	}
	err := conn.Run(ctx, a)
	r.observer.Dispatched(t, ActionKind(a), err)
	return err
}

// Query routes q to the connector for its plugin type.
func (r *Registry) Query(ctx context.Context, q Query) (string, error) {
	if q == nil {
		return "", fmt.Errorf("missing plugin query")
	}
	t := q.RequiredType()
	conn, ok := r.connectors[t]
	if !ok {
		err := &NotConfiguredError{Type: t}
		r.observer.Dispatched(t, QueryKind(q), err)
		return "", err
	}
	out, err := conn.Query(ctx, q)
	r.observer.Dispatched(t, QueryKind(q), err)
	return out, err
}

// IsConfigured reports whether the registry has a connector for t.
func (r *Registry) IsConfigured(t Type) bool {
	_, ok := r.connectors[t]
	return ok
}

// Connector returns the connector for t.
func (r *Registry) Connector(t Type) (Connector, bool) {
	conn, ok := r.connectors[t]
	return conn, ok
}

// Status lists every configured plugin in the order of Types. It reports the
// held state and does not contact the peers.
func (r *Registry) Status() []Status {
	var out []Status
	for _, t := range Types {
		if conn, ok := r.connectors[t]; ok {
			out = append(out, Status{Type: t, Connected: conn.Connected()})
		}
	}
	return out
}

// Close closes every connector.
func (r *Registry) Close() error {
	var err error
	for _, t := range Types {
		if conn, ok := r.connectors[t]; ok {
			err = multierr.Append(err, conn.Close())
		}
	}
	return err
}
