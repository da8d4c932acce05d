package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"scuffcommander/internal/clock"
)

// Observer is told about every evaluation a Runner performs.
type Observer interface {
	Evaluated(id string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Evaluated(string, time.Duration, error) {}

type observers []Observer

func (o observers) Evaluated(id string, took time.Duration, err error) {
	for _, obs := range o {
		obs.Evaluated(id, took, err)
	}
}

// Observers fans every evaluation out to each of obs in order.
func Observers(obs ...Observer) Observer {
	return observers(obs)
}

// Runner evaluates actions on behalf of a trigger surface, logging and
// observing each run.
type Runner struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	observer   Observer
	clock      clock.Clock
}

// NewRunner creates a runner dispatching through d. A nil observer or clock
// gets a no-op observer and the real clock.
func NewRunner(d Dispatcher, logger *zap.Logger, observer Observer, c clock.Clock) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if c == nil {
		c = clock.NewRealClock()
	}
	return &Runner{
		dispatcher: d,
		logger:     logger,
		observer:   observer,
		clock:      c,
	}
}

// Run evaluates a under the name id.
func (r *Runner) Run(ctx context.Context, id string, a Action) error {
	start := r.clock.Now()
	r.logger.Debug("Running action", zap.String("action", id))

	err := Evaluate(ctx, a, r.dispatcher)
	took := r.clock.Since(start)
	r.observer.Evaluated(id, took, err)

	if err != nil {
		r.logger.Warn("Action failed",
			zap.String("action", id),
			zap.Duration("took", took),
			zap.Error(err))
		return err
	}
	r.logger.Info("Action completed",
		zap.String("action", id),
		zap.Duration("took", took))
	return nil
}

// Check evaluates a condition outside of any action.
func (r *Runner) Check(ctx context.Context, c Condition) (bool, error) {
	ok, err := c.Check(ctx, r.dispatcher)
	if err != nil {
		r.logger.Warn("Condition check failed", zap.Stringer("condition", c), zap.Error(err))
		return false, err
	}
	r.logger.Debug("Condition checked", zap.Stringer("condition", c), zap.Bool("result", ok))
	return ok, nil
}
