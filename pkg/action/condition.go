package action

import (
	"context"
	"encoding/json"
	"fmt"

	"scuffcommander/pkg/plugin"
)

// Condition holds when Query returns exactly Target. Comparison is
// case-sensitive with no normalization.
type Condition struct {
	Query  plugin.Query
	Target string
}

type conditionJSON struct {
	Query  json.RawMessage `json:"query"`
	Target string          `json:"target"`
}

// Check runs the query and compares its result with Target. A failed query
// is an error, never false.
func (c Condition) Check(ctx context.Context, d Dispatcher) (bool, error) {
	if c.Query == nil {
		return false, fmt.Errorf("condition has no query")
	}
	got, err := d.Query(ctx, c.Query)
	if err != nil {
		return false, err
	}
	return got == c.Target, nil
}

func (c Condition) String() string {
	if c.Query == nil {
		return fmt.Sprintf("<none> == %q", c.Target)
	}
	return fmt.Sprintf("%s == %q", c.Query, c.Target)
}

func (c Condition) MarshalJSON() ([]byte, error) {
	q, err := plugin.MarshalQuery(c.Query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionJSON{Query: q, Target: c.Target})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}
	q, err := plugin.UnmarshalQuery(raw.Query)
	if err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}
	c.Query = q
	c.Target = raw.Target
	return nil
}
