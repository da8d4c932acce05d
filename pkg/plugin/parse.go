package plugin

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// input is the loose {"type": ..., "param": ...} form produced by editors.
type input struct {
	Type  string `mapstructure:"type"`
	Param any    `mapstructure:"param"`
}

// ParseAction converts the editor form of a command into a typed Action for
// plugin t. VTS params may be display names; pass the result through Resolve
// before storing it.
func ParseAction(t Type, data map[string]any) (Action, error) {
	var in input
	if err := mapstructure.Decode(data, &in); err != nil {
		return nil, fmt.Errorf("invalid %s action input: %w", t, err)
	}
	if in.Type == "" {
		return nil, fmt.Errorf("%s action type must be a string", t)
	}

	var (
		a   Action
		err error
	)
	switch t {
	case TypeOBS:
		act := OBSAction{Kind: OBSActionKind(in.Type)}
		if act.Kind == OBSProgramSceneChange {
			err = decodeParam(in.Param, &act.Scene)
		}
		a = act
	case TypeVTS:
		act := VTSAction{Kind: VTSActionKind(in.Type)}
		switch act.Kind {
		case VTSCheckConnection:
		case VTSMoveModel:
			err = decodeParam(in.Param, &act.Move)
		default:
			err = decodeParam(in.Param, &act.Param)
		}
		a = act
	case TypeGeneral:
		act := GeneralAction{Kind: GeneralActionKind(in.Type)}
		switch act.Kind {
		case GeneralDelay:
			err = decodeParam(in.Param, &act.Delay)
		case GeneralRunCommand:
			err = decodeParam(in.Param, &act.Command)
		}
		a = act
	default:
		return nil, fmt.Errorf("unknown plugin type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s %s parameter: %w", t, in.Type, err)
	}
	if err := Validate(a); err != nil {
		return nil, err
	}
	return a, nil
}

// ParseQuery converts a plugin type and kind name into a typed Query.
func ParseQuery(t Type, kind string) (Query, error) {
	var q Query
	switch t {
	case TypeOBS:
		q = OBSQuery{Kind: OBSQueryKind(kind)}
	case TypeVTS:
		q = VTSQuery{Kind: VTSQueryKind(kind)}
	default:
		return nil, fmt.Errorf("plugin %s has no queries", t)
	}
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	return q, nil
}

func decodeParam(param, out any) error {
	if param == nil {
		return fmt.Errorf("missing parameter")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(param)
}

// Resolve rewrites VTS actions whose parameter is a display name into the
// identifier VTube Studio expects. Actions that already carry an identifier,
// and every non-VTS action, are returned unchanged. Resolve talks to the peer
// and is meant for authoring, never for execution.
func Resolve(ctx context.Context, r *Registry, a Action) (Action, error) {
	act, ok := a.(VTSAction)
	if !ok {
		return a, nil
	}

	var pairs func(*VTSConnector, context.Context) ([]namePair, error)
	kind := ""
	switch act.Kind {
	case VTSLoadModel:
		pairs, kind = (*VTSConnector).models, "model"
	case VTSToggleExpression, VTSEnableExpression, VTSDisableExpression:
		pairs, kind = (*VTSConnector).expressions, "expression"
	case VTSTriggerHotkey:
		pairs, kind = (*VTSConnector).hotkeys, "hotkey"
	default:
		return a, nil
	}

	conn, configured := r.Connector(TypeVTS)
	vtsConn, isVTS := conn.(*VTSConnector)
	if !configured || !isVTS {
		return nil, &NotConfiguredError{Type: TypeVTS}
	}

	known, err := pairs(vtsConn, ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range known {
		if p.ID == act.Param {
			return act, nil
		}
	}
	id, err := lookup(kind, act.Param, known, nil, true)
	if err != nil {
		return nil, err
	}
	act.Param = id
	return act, nil
}
