package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"scuffcommander/internal/clock"
)

// GeneralConnector runs local actions. It has no connection and is always
// connected.
type GeneralConnector struct {
	opts   Options
	logger *zap.Logger
}

func NewGeneralConnector(opts ...Option) *GeneralConnector {
	o := newOptions(opts)
	return &GeneralConnector{opts: o, logger: o.Logger.Named("general")}
}

func (c *GeneralConnector) Type() Type      { return TypeGeneral }
func (c *GeneralConnector) Connected() bool { return true }
func (c *GeneralConnector) Close() error    { return nil }

// Run executes a General action.
func (c *GeneralConnector) Run(ctx context.Context, a Action) error {
	act, ok := a.(GeneralAction)
	if !ok {
		return mismatch(TypeGeneral, a)
	}
	if err := Validate(act); err != nil {
		return err
	}

	switch act.Kind {
	case GeneralDelay:
		d := time.Duration(act.Delay * float64(time.Second))
		if err := clock.Sleep(ctx, c.opts.Clock, d); err != nil {
			return fmt.Errorf("delay interrupted: %w", err)
		}
		return nil
	default:
		return c.runCommand(ctx, act.Command)
	}
}

// Query always fails: the General plugin has nothing to read.
func (c *GeneralConnector) Query(_ context.Context, q Query) (string, error) {
	return "", mismatchQuery(TypeGeneral, q)
}

func (c *GeneralConnector) runCommand(ctx context.Context, command Command) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command.Program, command.Args...)
	cmd.Dir = command.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("Running command",
		zap.String("program", command.Program),
		zap.Strings("args", command.Args),
		zap.String("dir", command.Dir))

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &RequestError{Type: TypeGeneral, Op: "RunCommand", Err: fmt.Errorf("%s timed out after %s", command.Program, c.opts.CommandTimeout)}
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w, stderr: %s", err, msg)
		}
		return &RequestError{Type: TypeGeneral, Op: "RunCommand", Err: err}
	}
	return nil
}
