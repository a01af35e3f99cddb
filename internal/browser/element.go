package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Element is a resolved node addressed through a playwright locator.
type Element struct {
	locator  playwright.Locator
	selector string
	timeout  time.Duration
}

func (e *Element) ms() *float64 {
	return playwright.Float(float64(e.timeout.Milliseconds()))
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.locator.Click(playwright.LocatorClickOptions{Timeout: e.ms()}); err != nil {
		return fmt.Errorf("native click: %w", err)
	}
	return nil
}

// ClickScript dispatches the click from page script, bypassing overlays
// that intercept pointer events.
func (e *Element) ClickScript(ctx context.Context) error {
	return e.eval(ctx, "script click", `el => el.click()`)
}

func (e *Element) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.locator.Hover(playwright.LocatorHoverOptions{Timeout: e.ms()}); err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.eval(ctx, "scroll", `el => el.scrollIntoView({block: 'center'})`)
}

func (e *Element) Highlight(ctx context.Context) error {
	return e.eval(ctx, "highlight", `el => { el.style.border = '3px solid red'; }`)
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.locator.Clear(playwright.LocatorClearOptions{Timeout: e.ms()}); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Type sends text as key presses without any delay of its own.
func (e *Element) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.locator.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Timeout: e.ms()}); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

func (e *Element) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.locator.Press(key, playwright.LocatorPressOptions{Timeout: e.ms()}); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (e *Element) String() string {
	return e.selector
}

func (e *Element) eval(ctx context.Context, what, expr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.locator.Evaluate(expr, nil, playwright.LocatorEvaluateOptions{Timeout: e.ms()}); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
