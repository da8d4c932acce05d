package action

import (
	"context"

	"scuffcommander/pkg/plugin"
)

// Resolve rewrites every VTS command in a whose parameter is a display name
// into the id the peer expects. Evaluate never resolves; callers do this once
// when an action is authored or imported.
func Resolve(ctx context.Context, r *plugin.Registry, a Action) (Action, error) {
	return Rewrite(a, func(cmd plugin.Action) (plugin.Action, error) {
		return plugin.Resolve(ctx, r, cmd)
	})
}
