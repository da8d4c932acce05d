package action

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Document is a named set of actions as written by the configurator:
// {"actions": {"<id>": <action>, ...}}.
type Document struct {
	Actions map[string]Action
}

type documentJSON struct {
	Actions map[string]json.RawMessage `json:"actions"`
}

// IDs returns the action ids in sorted order.
func (d Document) IDs() []string {
	ids := make([]string, 0, len(d.Actions))
	for id := range d.Actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{Actions: make(map[string]json.RawMessage, len(d.Actions))}
	for id, a := range d.Actions {
		data, err := Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", id, err)
		}
		out.Actions[id] = data
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode action document: %w", err)
	}
	d.Actions = make(map[string]Action, len(raw.Actions))
	for id, r := range raw.Actions {
		a, err := Unmarshal(r)
		if err != nil {
			return fmt.Errorf("action %q: %w", id, err)
		}
		d.Actions[id] = a
	}
	return nil
}

// LoadDocument reads an action document from path.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read action document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
