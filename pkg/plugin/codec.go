package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the adjacently tagged form shared by every level of an action
// document: {"tag": "...", "content": ...}. Unit variants omit content.
type envelope struct {
	Tag     string          `json:"tag"`
	Content json.RawMessage `json:"content,omitempty"`
}

func wrap(tag string, content any) ([]byte, error) {
	env := envelope{Tag: tag}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, err
		}
		env.Content = raw
	}
	return json.Marshal(env)
}

func unwrap(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	if env.Tag == "" {
		return env, fmt.Errorf("missing tag")
	}
	return env, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// MarshalAction encodes a as {"tag": <plugin type>, "content": <command>}.
func MarshalAction(a Action) ([]byte, error) {
	if err := Validate(a); err != nil {
		return nil, err
	}

	var (
		inner []byte
		err   error
	)
	switch a := a.(type) {
	case OBSAction:
		if a.Kind == OBSProgramSceneChange {
			inner, err = wrap(string(a.Kind), a.Scene)
		} else {
			inner, err = wrap(string(a.Kind), nil)
		}
	case VTSAction:
		switch a.Kind {
		case VTSCheckConnection:
			inner, err = wrap(string(a.Kind), nil)
		case VTSMoveModel:
			inner, err = wrap(string(a.Kind), a.Move)
		default:
			inner, err = wrap(string(a.Kind), a.Param)
		}
	case GeneralAction:
		if a.Kind == GeneralDelay {
			inner, err = wrap(string(a.Kind), a.Delay)
		} else {
			var dir any
			if a.Command.Dir != "" {
				dir = a.Command.Dir
			}
			args := a.Command.Args
			if args == nil {
				args = []string{}
			}
			inner, err = wrap(string(a.Kind), []any{a.Command.Program, args, dir})
		}
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Tag: string(a.RequiredType()), Content: inner})
}

// UnmarshalAction decodes the form written by MarshalAction.
func UnmarshalAction(data []byte) (Action, error) {
	outer, err := unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("decode plugin action: %w", err)
	}
	t, err := ParseType(outer.Tag)
	if err != nil {
		return nil, fmt.Errorf("decode plugin action: %w", err)
	}
	inner, err := unwrap(outer.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s action: %w", t, err)
	}

	var a Action
	switch t {
	case TypeOBS:
		a, err = decodeOBSAction(inner)
	case TypeVTS:
		a, err = decodeVTSAction(inner)
	case TypeGeneral:
		a, err = decodeGeneralAction(inner)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s action %s: %w", t, inner.Tag, err)
	}
	if err := Validate(a); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeOBSAction(env envelope) (Action, error) {
	a := OBSAction{Kind: OBSActionKind(env.Tag)}
	if a.Kind == OBSProgramSceneChange {
		if err := json.Unmarshal(env.Content, &a.Scene); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func decodeVTSAction(env envelope) (Action, error) {
	a := VTSAction{Kind: VTSActionKind(env.Tag)}
	switch a.Kind {
	case VTSCheckConnection:
	case VTSMoveModel:
		if err := json.Unmarshal(env.Content, &a.Move); err != nil {
			return nil, err
		}
	default:
		if isNull(env.Content) {
			return nil, fmt.Errorf("missing content")
		}
		if err := json.Unmarshal(env.Content, &a.Param); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func decodeGeneralAction(env envelope) (Action, error) {
	a := GeneralAction{Kind: GeneralActionKind(env.Tag)}
	switch a.Kind {
	case GeneralDelay:
		if err := json.Unmarshal(env.Content, &a.Delay); err != nil {
			return nil, err
		}
	case GeneralRunCommand:
		var parts []json.RawMessage
		if err := json.Unmarshal(env.Content, &parts); err != nil {
			return nil, err
		}
		if len(parts) < 1 || len(parts) > 3 {
			return nil, fmt.Errorf("expected [program, args, dir], got %d elements", len(parts))
		}
		if err := json.Unmarshal(parts[0], &a.Command.Program); err != nil {
			return nil, err
		}
		if len(parts) > 1 && !isNull(parts[1]) {
			if err := json.Unmarshal(parts[1], &a.Command.Args); err != nil {
				return nil, err
			}
		}
		if len(parts) > 2 && !isNull(parts[2]) {
			if err := json.Unmarshal(parts[2], &a.Command.Dir); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// MarshalQuery encodes q as {"tag": <plugin type>, "content": "<kind>"}.
func MarshalQuery(q Query) ([]byte, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	var kind string
	switch q := q.(type) {
	case OBSQuery:
		kind = string(q.Kind)
	case VTSQuery:
		kind = string(q.Kind)
	}
	return wrap(string(q.RequiredType()), kind)
}

// UnmarshalQuery decodes the form written by MarshalQuery.
func UnmarshalQuery(data []byte) (Query, error) {
	env, err := unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("decode plugin query: %w", err)
	}
	t, err := ParseType(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("decode plugin query: %w", err)
	}
	var kind string
	if err := json.Unmarshal(env.Content, &kind); err != nil {
		return nil, fmt.Errorf("decode %s query: %w", t, err)
	}

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
