package plugin

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"scuffcommander/internal/obs"
)

// OBSClient is the subset of obs.Client the connector drives.
type OBSClient interface {
	Close() error
	Version(ctx context.Context) (string, error)
	CurrentProgramScene(ctx context.Context) (string, error)
	SetCurrentProgramScene(ctx context.Context, scene string) error
	SceneNames(ctx context.Context) ([]string, error)
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	ToggleStream(ctx context.Context) error
	StreamActive(ctx context.Context) (bool, error)
	StartRecord(ctx context.Context) error
	StopRecord(ctx context.Context) error
	ToggleRecord(ctx context.Context) error
	RecordActive(ctx context.Context) (bool, error)
}

// OBSDialFunc opens a new OBS session.
type OBSDialFunc func(ctx context.Context) (OBSClient, error)

// OBSConfig holds the obs-websocket connection parameters.
type OBSConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr" validate:"required"`
	Port     int    `mapstructure:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
	Password string `mapstructure:"password" json:"-" yaml:"password,omitempty"`
}

// URL is the websocket address for the config.
func (c OBSConfig) URL() string {
	return "ws://" + net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

var obsCommands = map[OBSActionKind]func(OBSClient, context.Context) error{
	OBSStartStream:  OBSClient.StartStream,
	OBSStopStream:   OBSClient.StopStream,
	OBSToggleStream: OBSClient.ToggleStream,
	OBSStartRecord:  OBSClient.StartRecord,
	OBSStopRecord:   OBSClient.StopRecord,
	OBSToggleRecord: OBSClient.ToggleRecord,
}

// OBSConnector drives one OBS Studio instance.
type OBSConnector struct {
	link *link[OBSClient]
}

// NewOBSConnector builds the connector and tries to connect once. A failed
// attempt is logged; the connector stays usable and reconnects on first use.
func NewOBSConnector(ctx context.Context, cfg OBSConfig, opts ...Option) *OBSConnector {
	o := newOptions(opts)
	logger := o.Logger.Named("obs")
	dial := func(ctx context.Context) (OBSClient, error) {
		client, err := obs.Dial(ctx, obs.Config{URL: cfg.URL(), Password: cfg.Password}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	c := &OBSConnector{link: newLink[OBSClient](TypeOBS, dial, o)}
	_ = c.Connect(ctx)
	return c
}

// NewOBSConnectorFunc builds a connector around dial without connecting.
func NewOBSConnectorFunc(dial OBSDialFunc, opts ...Option) *OBSConnector {
	return &OBSConnector{link: newLink[OBSClient](TypeOBS, dial, newOptions(opts))}
}

func (c *OBSConnector) Type() Type { return TypeOBS }

// Connect dials if the connector holds no live session.
func (c *OBSConnector) Connect(ctx context.Context) error {
	return c.link.connect(ctx)
}

func (c *OBSConnector) Connected() bool {
	return c.link.connected()
}

func (c *OBSConnector) Close() error {
	return c.link.close()
}

// Run executes an OBS action.
func (c *OBSConnector) Run(ctx context.Context, a Action) error {
	act, ok := a.(OBSAction)
	if !ok {
		return mismatch(TypeOBS, a)
	}
	if err := Validate(act); err != nil {
		return err
	}

	switch act.Kind {
	case OBSProgramSceneChange:
		return c.link.do(ctx, "SetCurrentProgramScene", func(ctx context.Context, cl OBSClient) error {
			return cl.SetCurrentProgramScene(ctx, act.Scene)
		})
	case OBSCheckConnection:
		return c.link.do(ctx, "CheckConnection", func(ctx context.Context, cl OBSClient) error {
			_, err := cl.Version(ctx)
			return err
		})
	default:
		cmd := obsCommands[act.Kind]
		return c.link.do(ctx, string(act.Kind), func(ctx context.Context, cl OBSClient) error {
			return cmd(cl, ctx)
		})
	}
}

// Query reads an OBS value.
func (c *OBSConnector) Query(ctx context.Context, q Query) (string, error) {
	query, ok := q.(OBSQuery)
	if !ok {
		return "", mismatchQuery(TypeOBS, q)
	}
	if err := ValidateQuery(query); err != nil {
		return "", err
	}

	switch query.Kind {
	case OBSCurrentProgramScene:
		return call(ctx, c.link, "GetCurrentProgramScene", func(ctx context.Context, cl OBSClient) (string, error) {
			return cl.CurrentProgramScene(ctx)
		})
	case OBSIsStreaming:
		return call(ctx, c.link, "GetStreamStatus", func(ctx context.Context, cl OBSClient) (string, error) {
			active, err := cl.StreamActive(ctx)
			return FormatBool(active), err
		})
	case OBSIsRecording:
		return call(ctx, c.link, "GetRecordStatus", func(ctx context.Context, cl OBSClient) (string, error) {
			active, err := cl.RecordActive(ctx)
			return FormatBool(active), err
		})
	default:
		return call(ctx, c.link, "GetVersion", func(ctx context.Context, cl OBSClient) (string, error) {
			version, err := cl.Version(ctx)
			if err != nil {
				return "", err
			}
			return majorVersion(version), nil
		})
	}
}

// SceneNames lists the scenes in display order.
func (c *OBSConnector) SceneNames(ctx context.Context) ([]string, error) {
	return call(ctx, c.link, "GetSceneList", func(ctx context.Context, cl OBSClient) ([]string, error) {
		return cl.SceneNames(ctx)
	})
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}

func mismatch(connector Type, a Action) error {
	if a == nil {
		return fmt.Errorf("missing plugin action")
	}
	return &MismatchError{Connector: connector, Envelope: a.RequiredType()}
}

func mismatchQuery(connector Type, q Query) error {
	if q == nil {
		return fmt.Errorf("missing plugin query")
	}
	return &MismatchError{Connector: connector, Envelope: q.RequiredType()}
}
