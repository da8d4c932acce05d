package action

import (
	"fmt"
	"strings"

	"scuffcommander/pkg/plugin"
)

// Describe renders a as a markdown outline, one list item per node.
func Describe(id string, a Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", id)
	describe(&b, a, 0)
	return b.String()
}

func describe(b *strings.Builder, a Action, depth int) {
	indent := strings.Repeat("  ", depth)
	switch a := a.(type) {
	case Single:
		fmt.Fprintf(b, "%s- `%s`\n", indent, a.Command)
	case Chain:
		if len(a.Steps) == 0 {
			fmt.Fprintf(b, "%s- *empty chain*\n", indent)
			return
		}
		fmt.Fprintf(b, "%s- **chain** (%d steps)\n", indent, len(a.Steps))
		for _, s := range a.Steps {
			describe(b, s, depth+1)
		}
	case If:
		fmt.Fprintf(b, "%s- **if** `%s`\n", indent, a.Cond)
		fmt.Fprintf(b, "%s  - **then**\n", indent)
		describe(b, a.Then, depth+2)
		if a.Else != nil {
			fmt.Fprintf(b, "%s  - **else**\n", indent)
			describe(b, a.Else, depth+2)
		}
	default:
		fmt.Fprintf(b, "%s- *invalid*\n", indent)
	}
}

// Summary is a one-line description of a.
func Summary(a Action) string {
	switch a := a.(type) {
	case Single:
		if a.Command == nil {
			return "invalid"
		}
		return a.Command.String()
	case Chain:
		if len(a.Steps) == 1 {
			return "chain of 1 step"
		}
		return fmt.Sprintf("chain of %d steps", len(a.Steps))
	case If:
		return fmt.Sprintf("if %s", a.Cond)
	default:
		return "invalid"
	}
}

// Plugins lists the plugin types a can touch through its commands or
// conditions, in the order of plugin.Types.
func Plugins(a Action) []plugin.Type {
	need := make(map[plugin.Type]bool)
	Walk(a, func(cmd plugin.Action) {
		if cmd != nil {
			need[cmd.RequiredType()] = true
		}
	})
	var conds func(Action)
	conds = func(a Action) {
		switch a := a.(type) {
		case Chain:
			for _, s := range a.Steps {
				conds(s)
			}
		case If:
			if a.Cond.Query != nil {
				need[a.Cond.Query.RequiredType()] = true
			}
			conds(a.Then)
			conds(a.Else)
		}
	}
	conds(a)

	out := make([]plugin.Type, 0, len(need))
	for _, t := range plugin.Types {
		if need[t] {
			out = append(out, t)
		}
	}
	return out
}
