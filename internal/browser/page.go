package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/coin-collector/internal/resolve"
)

var ErrScriptNoMatch = errors.New("script returned no element")

// refAttribute tags elements found by script so a locator can address them.
const refAttribute = "data-collector-ref"

const scriptPoll = 250 * time.Millisecond

// Page is one tab. It implements resolve.Finder[*Element].
type Page struct {
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger
}

// Find waits up to q.Timeout for the query to match a visible element.
func (p *Page) Find(ctx context.Context, q resolve.Query) (*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := boundedTimeout(ctx, q.Timeout)

	switch q.Strategy {
	case resolve.StrategyCSS, resolve.StrategyXPath:
		loc := p.page.Locator(locatorSelector(q.Strategy, q.Selector)).First()
		if err := waitVisible(loc, timeout); err != nil {
			return nil, err
		}
		return p.element(loc, q.Selector), nil

	case resolve.StrategyScript:
		return p.findByScript(ctx, q.Selector, timeout)

	default:
		return nil, fmt.Errorf("unsupported strategy %q", q.Strategy)
	}
}

// findByScript polls the script until it yields an element, then tags it and
// hands back a locator bound to the tag.
func (p *Page) findByScript(ctx context.Context, script string, timeout time.Duration) (*Element, error) {
	ref := uuid.New().String()
	expr := tagScript(script)
	deadline := time.Now().Add(timeout)

	for {
		v, err := p.page.Evaluate(expr, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate script: %w", err)
		}
		if tagged, _ := v.(bool); tagged {
			sel := fmt.Sprintf("[%s=%q]", refAttribute, ref)
			loc := p.page.Locator(sel).First()
			if err := waitVisible(loc, time.Until(deadline)); err != nil {
				return nil, err
			}
			return p.element(loc, sel), nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w within %s", ErrScriptNoMatch, timeout)
		}

		timer := time.NewTimer(scriptPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Page) element(loc playwright.Locator, selector string) *Element {
	return &Element{
		locator:  loc,
		selector: selector,
		timeout:  p.timeout,
	}
}

// Navigate loads url, retrying up to attempts times on transport errors.
func (p *Page) Navigate(ctx context.Context, url string) error {
	const attempts = 3

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			p.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}

		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(p.timeout.Milliseconds())),
		})
		if err == nil {
			p.logger.Debug("navigated", "url", url)
			return nil
		}

		lastErr = err
		p.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", attempts, lastErr)
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Close() error {
	return p.page.Close()
}

func waitVisible(loc playwright.Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// locatorSelector maps a strategy onto playwright's selector engines.
func locatorSelector(s resolve.Strategy, selector string) string {
	if s == resolve.StrategyXPath {
		return "xpath=" + selector
	}
	return selector
}

// tagScript wraps a script body that returns an element (or null) into a
// function that marks the match with refAttribute.
func tagScript(body string) string {
	return fmt.Sprintf(`(ref) => {
	const el = (() => { %s })();
	if (!el || !(el instanceof Element)) return false;
	el.setAttribute(%q, ref);
	return true;
}`, body, refAttribute)
}

// boundedTimeout shortens timeout to the context deadline.
func boundedTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = resolve.DefaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			return left
		}
	}
	return timeout
}
