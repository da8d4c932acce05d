// Package action holds the user-authored action tree and its evaluator.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"

	"scuffcommander/pkg/plugin"
)

// Action is one node of an action tree. The set of node kinds is closed.
type Action interface {
	isAction()
}

// Single runs one plugin command.
type Single struct {
	Command plugin.Action
}

// Chain runs its steps in order and stops at the first failure. An empty
// chain succeeds without doing anything.
type Chain struct {
	Steps []Action
}

// If runs Then when Cond holds and Else otherwise. A nil Else does nothing.
type If struct {
	Cond Condition
	Then Action
	Else Action
}

func (Single) isAction() {}
func (Chain) isAction()  {}
func (If) isAction()     {}

const (
	tagSingle = "Single"
	tagChain  = "Chain"
	tagIf     = "If"
)

type node struct {
	Tag     string          `json:"tag"`
	Content json.RawMessage `json:"content"`
}

// Marshal encodes a as {"tag": "Single"|"Chain"|"If", "content": ...}.
func Marshal(a Action) ([]byte, error) {
	switch a := a.(type) {
	case Single:
		cmd, err := plugin.MarshalAction(a.Command)
		if err != nil {
			return nil, err
		}
		return json.Marshal(node{Tag: tagSingle, Content: cmd})
	case Chain:
		steps := make([]json.RawMessage, 0, len(a.Steps))
		for i, step := range a.Steps {
			data, err := Marshal(step)
			if err != nil {
				return nil, fmt.Errorf("chain step %d: %w", i, err)
			}
			steps = append(steps, data)
		}
		content, err := json.Marshal(steps)
		if err != nil {
			return nil, err
		}
		return json.Marshal(node{Tag: tagChain, Content: content})
	case If:
		cond, err := json.Marshal(a.Cond)
		if err != nil {
			return nil, err
		}
		then, err := Marshal(a.Then)
		if err != nil {
			return nil, fmt.Errorf("if branch: %w", err)
		}
		otherwise := json.RawMessage("null")
		if a.Else != nil {
			if otherwise, err = Marshal(a.Else); err != nil {
				return nil, fmt.Errorf("else branch: %w", err)
			}
		}
		content, err := json.Marshal([]json.RawMessage{cond, then, otherwise})
		if err != nil {
			return nil, err
		}
		return json.Marshal(node{Tag: tagIf, Content: content})
	case nil:
		return nil, fmt.Errorf("missing action")
	default:
		return nil, fmt.Errorf("unsupported action %T", a)
	}
}

// Unmarshal decodes the form written by Marshal.
func Unmarshal(data []byte) (Action, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	switch n.Tag {
	case tagSingle:
		cmd, err := plugin.UnmarshalAction(n.Content)
		if err != nil {
			return nil, err
		}
		return Single{Command: cmd}, nil
	case tagChain:
		var raw []json.RawMessage
		if err := json.Unmarshal(n.Content, &raw); err != nil {
			return nil, fmt.Errorf("decode chain: %w", err)
		}
		steps := make([]Action, 0, len(raw))
		for i, r := range raw {
			step, err := Unmarshal(r)
			if err != nil {
				return nil, fmt.Errorf("chain step %d: %w", i, err)
			}
			steps = append(steps, step)
		}
		return Chain{Steps: steps}, nil
	case tagIf:
		var raw []json.RawMessage
		if err := json.Unmarshal(n.Content, &raw); err != nil {
			return nil, fmt.Errorf("decode if: %w", err)
		}
		if len(raw) != 2 && len(raw) != 3 {
			return nil, fmt.Errorf("decode if: expected [condition, then, else], got %d elements", len(raw))
		}
		var out If
		if err := json.Unmarshal(raw[0], &out.Cond); err != nil {
			return nil, err
		}
		then, err := Unmarshal(raw[1])
		if err != nil {
			return nil, fmt.Errorf("if branch: %w", err)
		}
		out.Then = then
		if len(raw) == 3 && !bytes.Equal(bytes.TrimSpace(raw[2]), []byte("null")) {
			if out.Else, err = Unmarshal(raw[2]); err != nil {
				return nil, fmt.Errorf("else branch: %w", err)
			}
		}
		return out, nil
	case "":
		return nil, fmt.Errorf("decode action: missing tag")
	default:
		return nil, fmt.Errorf("decode action: unknown node %q", n.Tag)
	}
}

// Clone returns a deep copy of a.
func Clone(a Action) Action {
	switch a := a.(type) {
	case Single:
		return Single{Command: plugin.CloneAction(a.Command)}
	case Chain:
		if a.Steps == nil {
			return Chain{}
		}
		steps := make([]Action, len(a.Steps))
		for i, s := range a.Steps {
			steps[i] = Clone(s)
		}
		return Chain{Steps: steps}
	case If:
		out := If{Cond: a.Cond, Then: Clone(a.Then)}
		if a.Else != nil {
			out.Else = Clone(a.Else)
		}
		return out
	default:
		return a
	}
}

// Walk calls fn for every plugin command in a, in evaluation order of the
// tree (both branches of an If are visited).
func Walk(a Action, fn func(plugin.Action)) {
	switch a := a.(type) {
	case Single:
		fn(a.Command)
	case Chain:
		for _, s := range a.Steps {
			Walk(s, fn)
		}
	case If:
		Walk(a.Then, fn)
		if a.Else != nil {
			Walk(a.Else, fn)
		}
	}
}

// Rewrite returns a copy of a with every plugin command replaced by fn's
// result. The first error stops the rewrite.
func Rewrite(a Action, fn func(plugin.Action) (plugin.Action, error)) (Action, error) {
	switch a := a.(type) {
	case Single:
		cmd, err := fn(a.Command)
		if err != nil {
			return nil, err
		}
		return Single{Command: cmd}, nil
	case Chain:
		out := Chain{}
		if a.Steps != nil {
			out.Steps = make([]Action, len(a.Steps))
		}
		for i, s := range a.Steps {
			step, err := Rewrite(s, fn)
			if err != nil {
				return nil, err
			}
			out.Steps[i] = step
		}
		return out, nil
	case If:
		then, err := Rewrite(a.Then, fn)
		if err != nil {
			return nil, err
		}
		out := If{Cond: a.Cond, Then: then}
		if a.Else != nil {
			if out.Else, err = Rewrite(a.Else, fn); err != nil {
				return nil, err
			}
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing action")
	default:
		return nil, fmt.Errorf("unsupported action %T", a)
	}
}
