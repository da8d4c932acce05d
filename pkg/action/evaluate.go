package action

import (
	"context"
	"errors"
	"fmt"

	"scuffcommander/pkg/plugin"
)

// ErrChainAborted matches any error returned from a chain whose step failed.
var ErrChainAborted = errors.New("action chain failed")

// Dispatcher routes plugin commands and queries. *plugin.Registry satisfies
// it.
type Dispatcher interface {
	Dispatch(ctx context.Context, a plugin.Action) error
	Query(ctx context.Context, q plugin.Query) (string, error)
}

// ChainError wraps the error of the step that stopped a chain.
type ChainError struct {
	Step int
	Err  error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("action chain failed: %v", e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

func (e *ChainError) Is(target error) bool {
	return target == ErrChainAborted
}

// Evaluate walks a in order, dispatching each command through d. It returns
// the first error and runs nothing after it.
func Evaluate(ctx context.Context, a Action, d Dispatcher) error {
	switch a := a.(type) {
	case Single:
		return d.Dispatch(ctx, a.Command)
	case Chain:
		for i, step := range a.Steps {
			if err := Evaluate(ctx, step, d); err != nil {
				return &ChainError{Step: i, Err: err}
			}
		}
		return nil
	case If:
		ok, err := a.Cond.Check(ctx, d)
		if err != nil {
			return err
		}
		if ok {
			return Evaluate(ctx, a.Then, d)
		}
		if a.Else != nil {
			return Evaluate(ctx, a.Else, d)
		}
		return nil
	case nil:
		return fmt.Errorf("missing action")
	default:
		return fmt.Errorf("unsupported action %T", a)
	}
}
