package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/coin-collector/internal/pacing"
	"github.com/maltedev/coin-collector/internal/resolve"
)

var ErrInteractionFailed = errors.New("interaction failed")

// InteractionError means an element was found but neither a native nor a
// script-dispatched action worked on it.
type InteractionError struct {
	Target string
	Action string
	Native error
	Script error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s: %s %s (native: %v; script: %v)", e.Target, ErrInteractionFailed, e.Action, e.Native, e.Script)
}

func (e *InteractionError) Is(target error) bool {
	return target == ErrInteractionFailed
}

func (e *InteractionError) Unwrap() []error {
	return []error{e.Native, e.Script}
}

// locate resolves spec and converts a miss into its *resolve.NotFoundError.
func (c *Collector) locate(ctx context.Context, spec resolve.LocatorSpec) (Element, error) {
	res, err := c.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}
	if !res.Found() {
		return nil, res.Err()
	}
	return res.Element, nil
}

// prepare asks the gate, scrolls el to the middle of the viewport and waits a
// moment the way a person would before acting on it.
func (c *Collector) prepare(ctx context.Context, target string, el Element) error {
	if err := c.gate.Confirm(ctx, target); err != nil {
		return err
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		c.logger.Debug("scroll failed", "target", target, "error", err)
	}
	return c.pacer.Between(ctx, c.delays.Look.Min, c.delays.Look.Max)
}

// click tries a native click and falls back to a script click.
func (c *Collector) click(ctx context.Context, target string, el Element) error {
	native := el.Click(ctx)
	if native == nil {
		c.logger.Info("clicked", "target", target, "method", "native")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.logger.Warn("native click failed, trying script click", "target", target, "error", native)
	script := el.ClickScript(ctx)
	if script == nil {
		c.logger.Info("clicked", "target", target, "method", "script")
		return nil
	}

	return &InteractionError{Target: target, Action: "click", Native: native, Script: script}
}

// activate is locate, prepare and click in one go.
func (c *Collector) activate(ctx context.Context, spec resolve.LocatorSpec) error {
	el, err := c.locate(ctx, spec)
	if err != nil {
		return err
	}
	if err := c.prepare(ctx, spec.Name, el); err != nil {
		return err
	}
	return c.click(ctx, spec.Name, el)
}

// typeHuman plays a keystroke plan into el.
func (c *Collector) typeHuman(ctx context.Context, target string, el Element, text string) error {
	for _, k := range c.pacer.Keystrokes(text, c.typing) {
		var err error
		if k.Key != "" {
			err = el.Press(ctx, k.Key)
		} else {
			err = el.Type(ctx, k.Text)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%s: %w type: %w", target, ErrInteractionFailed, err)
		}
		if err := c.pacer.Wait(ctx, k.Delay); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) pause(ctx context.Context, r pacing.Range) error {
	return c.pacer.Between(ctx, r.Min, r.Max)
}
