package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"scuffcommander/internal/vts"
)

var errExpressionNotFound = errors.New("expression not found in current model")

// VTSClient is the subset of vts.Client the connector drives.
type VTSClient interface {
	Close() error
	Version(ctx context.Context) (string, error)
	CurrentModel(ctx context.Context) (vts.Model, vts.Position, error)
	AvailableModels(ctx context.Context) ([]vts.Model, error)
	LoadModel(ctx context.Context, modelID string) error
	Expressions(ctx context.Context, file string) ([]vts.Expression, error)
	SetExpression(ctx context.Context, file string, active bool) error
	Hotkeys(ctx context.Context) ([]vts.Hotkey, error)
	TriggerHotkey(ctx context.Context, hotkeyID string) error
	MoveModel(ctx context.Context, m vts.Move) error
}

// VTSDialFunc opens a new VTube Studio session with the given stored token.
// Tokens issued during the handshake are passed to onToken.
type VTSDialFunc func(ctx context.Context, token string, onToken func(string)) (VTSClient, error)

// VTSConfig holds the VTube Studio connection parameters.
type VTSConfig struct {
	Addr      string `mapstructure:"addr" json:"addr" yaml:"addr" validate:"required,url"`
	TokenFile string `mapstructure:"token_file" json:"token_file" yaml:"token_file" validate:"required"`
}

// VTSConnector drives one VTube Studio instance. Its authentication token is
// read once at construction and replaced whenever VTube Studio issues a new
// one; replacements are written to TokenFile in the background.
type VTSConnector struct {
	link   *link[VTSClient]
	tokens *vts.TokenStore
}

// NewVTSConnector builds the connector and tries to connect once.
func NewVTSConnector(ctx context.Context, cfg VTSConfig, opts ...Option) *VTSConnector {
	o := newOptions(opts)
	logger := o.Logger.Named("vts")
	dial := func(ctx context.Context, token string, onToken func(string)) (VTSClient, error) {
		client, err := vts.Dial(ctx, vts.Config{URL: cfg.Addr, Token: token, OnToken: onToken}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	c := newVTSConnector(dial, vts.NewTokenStore(o.FS, cfg.TokenFile, logger), o)
	_ = c.Connect(ctx)
	return c
}

// NewVTSConnectorFunc builds a connector around dial without connecting. A
// nil tokens keeps tokens in memory only.
func NewVTSConnectorFunc(dial VTSDialFunc, tokens *vts.TokenStore, opts ...Option) *VTSConnector {
	o := newOptions(opts)
	if tokens == nil {
		tokens = vts.NewTokenStore(afero.NewMemMapFs(), "vts_token.txt", o.Logger.Named("vts"))
	}
	return newVTSConnector(dial, tokens, o)
}

func newVTSConnector(dial VTSDialFunc, tokens *vts.TokenStore, o Options) *VTSConnector {
	c := &VTSConnector{tokens: tokens}
	c.link = newLink[VTSClient](TypeVTS, func(ctx context.Context) (VTSClient, error) {
		return dial(ctx, tokens.Current(), tokens.Offer)
	}, o)
	return c
}

func (c *VTSConnector) Type() Type { return TypeVTS }

// Connect dials if the connector holds no live session.
func (c *VTSConnector) Connect(ctx context.Context) error {
	return c.link.connect(ctx)
}

func (c *VTSConnector) Connected() bool {
	return c.link.connected()
}

// Close ends the session and flushes any pending token write.
func (c *VTSConnector) Close() error {
	return multierr.Combine(c.link.close(), c.tokens.Close())
}

// Token returns the current authentication token.
func (c *VTSConnector) Token() string {
	return c.tokens.Current()
}

// Run executes a VTS action.
func (c *VTSConnector) Run(ctx context.Context, a Action) error {
	act, ok := a.(VTSAction)
	if !ok {
		return mismatch(TypeVTS, a)
	}
	if err := Validate(act); err != nil {
		return err
	}

	switch act.Kind {
	case VTSToggleExpression:
		return c.link.do(ctx, "ToggleExpression", func(ctx context.Context, cl VTSClient) error {
			exprs, err := cl.Expressions(ctx, act.Param)
			if err != nil {
				return err
			}
			if len(exprs) == 0 {
				return errExpressionNotFound
			}
			return cl.SetExpression(ctx, act.Param, !exprs[0].Active)
		})
	case VTSEnableExpression, VTSDisableExpression:
		active := act.Kind == VTSEnableExpression
		return c.link.do(ctx, string(act.Kind), func(ctx context.Context, cl VTSClient) error {
			return cl.SetExpression(ctx, act.Param, active)
		})
	case VTSLoadModel:
		return c.link.do(ctx, "LoadModel", func(ctx context.Context, cl VTSClient) error {
			return cl.LoadModel(ctx, act.Param)
		})
	case VTSMoveModel:
		m := act.Move
		return c.link.do(ctx, "MoveModel", func(ctx context.Context, cl VTSClient) error {
			return cl.MoveModel(ctx, vts.Move{
				TimeInSeconds: m.TimeSec,
				PositionX:     m.X,
				PositionY:     m.Y,
				Rotation:      m.Rotation,
				Size:          m.Size,
			})
		})
	case VTSTriggerHotkey:
		return c.link.do(ctx, "TriggerHotkey", func(ctx context.Context, cl VTSClient) error {
			return cl.TriggerHotkey(ctx, act.Param)
		})
	default:
		return c.link.do(ctx, "CheckConnection", func(ctx context.Context, cl VTSClient) error {
			_, err := cl.Version(ctx)
			return err
		})
	}
}

// Query reads a VTS value.
func (c *VTSConnector) Query(ctx context.Context, q Query) (string, error) {
	query, ok := q.(VTSQuery)
	if !ok {
		return "", mismatchQuery(TypeVTS, q)
	}
	if err := ValidateQuery(query); err != nil {
		return "", err
	}

	switch query.Kind {
	case VTSActiveModelID:
		model, err := c.currentModel(ctx)
		return model.ModelID, err
	case VTSActiveModelName:
		model, err := c.currentModel(ctx)
		return model.ModelName, err
	default:
		return call(ctx, c.link, "Statistics", func(ctx context.Context, cl VTSClient) (string, error) {
			return cl.Version(ctx)
		})
	}
}

func (c *VTSConnector) currentModel(ctx context.Context) (vts.Model, error) {
	return call(ctx, c.link, "CurrentModel", func(ctx context.Context, cl VTSClient) (vts.Model, error) {
		model, _, err := cl.CurrentModel(ctx)
		return model, err
	})
}

// ModelPosition returns the current model's placement as a MoveModel with a
// zero duration, ready to be stored in an action.
func (c *VTSConnector) ModelPosition(ctx context.Context) (MoveModel, error) {
	return call(ctx, c.link, "CurrentModel", func(ctx context.Context, cl VTSClient) (MoveModel, error) {
		_, pos, err := cl.CurrentModel(ctx)
		return MoveModel{X: pos.PositionX, Y: pos.PositionY, Rotation: pos.Rotation, Size: pos.Size}, err
	})
}

// namePair maps a display name to the identifier VTube Studio expects.
type namePair struct {
	Name string
	ID   string
}

func (c *VTSConnector) models(ctx context.Context) ([]namePair, error) {
	return call(ctx, c.link, "AvailableModels", func(ctx context.Context, cl VTSClient) ([]namePair, error) {
		models, err := cl.AvailableModels(ctx)
		pairs := make([]namePair, 0, len(models))
		for _, m := range models {
			pairs = append(pairs, namePair{Name: m.ModelName, ID: m.ModelID})
		}
		return pairs, err
	})
}

func (c *VTSConnector) expressions(ctx context.Context) ([]namePair, error) {
	return call(ctx, c.link, "ExpressionState", func(ctx context.Context, cl VTSClient) ([]namePair, error) {
		exprs, err := cl.Expressions(ctx, "")
		pairs := make([]namePair, 0, len(exprs))
		for _, e := range exprs {
			pairs = append(pairs, namePair{Name: e.Name, ID: e.File})
		}
		return pairs, err
	})
}

func (c *VTSConnector) hotkeys(ctx context.Context) ([]namePair, error) {
	return call(ctx, c.link, "HotkeysInCurrentModel", func(ctx context.Context, cl VTSClient) ([]namePair, error) {
		hotkeys, err := cl.Hotkeys(ctx)
		pairs := make([]namePair, 0, len(hotkeys))
		for _, h := range hotkeys {
			pairs = append(pairs, namePair{Name: h.Name, ID: h.HotkeyID})
		}
		return pairs, err
	})
}

func names(pairs []namePair, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Name)
	}
	return out, nil
}

func lookup(kind, key string, pairs []namePair, err error, byName bool) (string, error) {
	if err != nil {
		return "", err
	}
	for _, p := range pairs {
		if byName && p.Name == key {
			return p.ID, nil
		}
		if !byName && p.ID == key {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%s %q: %w", kind, key, ErrUnknownName)
}

// ModelNames lists the display names of every available model.
func (c *VTSConnector) ModelNames(ctx context.Context) ([]string, error) {
	return names(c.models(ctx))
}

// ExpressionNames lists the display names of the current model's expressions.
func (c *VTSConnector) ExpressionNames(ctx context.Context) ([]string, error) {
	return names(c.expressions(ctx))
}

// HotkeyNames lists the display names of the current model's hotkeys.
func (c *VTSConnector) HotkeyNames(ctx context.Context) ([]string, error) {
	return names(c.hotkeys(ctx))
}

// ResolveModel returns the ID of the model with the given display name.
func (c *VTSConnector) ResolveModel(ctx context.Context, name string) (string, error) {
	pairs, err := c.models(ctx)
	return lookup("model", name, pairs, err, true)
}

// ResolveExpression returns the file of the expression with the given display name.
func (c *VTSConnector) ResolveExpression(ctx context.Context, name string) (string, error) {
	pairs, err := c.expressions(ctx)
	return lookup("expression", name, pairs, err, true)
}

// ResolveHotkey returns the ID of the hotkey with the given display name.
func (c *VTSConnector) ResolveHotkey(ctx context.Context, name string) (string, error) {
	pairs, err := c.hotkeys(ctx)
	return lookup("hotkey", name, pairs, err, true)
}

// ModelName returns the display name of the model with the given ID.
func (c *VTSConnector) ModelName(ctx context.Context, id string) (string, error) {
	pairs, err := c.models(ctx)
	return lookup("model", id, pairs, err, false)
}

// ExpressionName returns the display name of the expression file.
func (c *VTSConnector) ExpressionName(ctx context.Context, file string) (string, error) {
	pairs, err := c.expressions(ctx)
	return lookup("expression", file, pairs, err, false)
}

// HotkeyName returns the display name of the hotkey with the given ID.
func (c *VTSConnector) HotkeyName(ctx context.Context, id string) (string, error) {
	pairs, err := c.hotkeys(ctx)
	return lookup("hotkey", id, pairs, err, false)
}
