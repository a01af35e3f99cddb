package collector

import (
	"context"
	"fmt"

	"github.com/maltedev/coin-collector/internal/resolve"
)

// open loads the coin page so the site can ask for a login.
func (c *Collector) open(ctx context.Context) error {
	if err := c.driver.Navigate(ctx, c.coinPageURL); err != nil {
		return err
	}
	return c.pause(ctx, c.delays.Landing)
}

// Login signs in with the configured credentials. The caller decides what a
// failure means; the site often keeps a session and skips the form.
func (c *Collector) Login(ctx context.Context) error {
	c.logger.Info("starting login")

	if err := c.fill(ctx, emailInput, c.creds.Email); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := c.activate(ctx, continueButton); err != nil {
		return err
	}
	if err := c.pause(ctx, c.delays.Step); err != nil {
		return err
	}

	if err := c.fill(ctx, passwordInput, c.creds.Password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	if err := c.activate(ctx, signInButton); err != nil {
		return err
	}

	return c.pause(ctx, c.delays.Settle)
}

// fill focuses the field found by spec and types text into it.
func (c *Collector) fill(ctx context.Context, spec resolve.LocatorSpec, text string) error {
	el, err := c.locate(ctx, spec)
	if err != nil {
		return err
	}
	if err := c.prepare(ctx, spec.Name, el); err != nil {
		return err
	}
	if err := c.click(ctx, spec.Name, el); err != nil {
		return err
	}
	if err := c.pause(ctx, c.delays.Look); err != nil {
		return err
	}
	if err := c.typeHuman(ctx, spec.Name, el, text); err != nil {
		return err
	}
	return c.pause(ctx, c.delays.Look)
}

// setCountry switches the ship-to country to Korea and saves it.
func (c *Collector) setCountry(ctx context.Context) error {
	if err := c.activate(ctx, shipToDropdown); err != nil {
		return err
	}
	if err := c.pause(ctx, c.delays.Step); err != nil {
		return err
	}

	if err := c.activate(ctx, countrySelector); err != nil {
		return err
	}
	if err := c.pause(ctx, c.delays.Step); err != nil {
		return err
	}

	if err := c.searchCountry(ctx); err != nil {
		return err
	}

	if err := c.activate(ctx, koreaOption); err != nil {
		return err
	}
	if err := c.pause(ctx, c.delays.Step); err != nil {
		return err
	}

	if err := c.activate(ctx, saveButton); err != nil {
		return err
	}
	if err := c.pause(ctx, c.delays.Settle); err != nil {
		return err
	}

	c.verifyCountry(ctx)
	return nil
}

// searchCountry types each search term until the dropdown lists a match.
// When no term produces results the last one stays in the field and the
// option lookup decides.
func (c *Collector) searchCountry(ctx context.Context) error {
	search, err := c.locate(ctx, countrySearchInput)
	if err != nil {
		return err
	}
	if err := c.prepare(ctx, countrySearchInput.Name, search); err != nil {
		return err
	}
	if err := c.click(ctx, countrySearchInput.Name, search); err != nil {
		return err
	}

	for i, term := range c.searchTerms {
		if i > 0 {
			if err := search.Clear(ctx); err != nil {
				return fmt.Errorf("clear search: %w", err)
			}
			if err := c.pause(ctx, c.delays.Look); err != nil {
				return err
			}
		}

		if err := c.typeHuman(ctx, countrySearchInput.Name, search, term); err != nil {
			return err
		}
		if err := c.pause(ctx, c.delays.Step); err != nil {
			return err
		}

		res, err := c.resolver.ResolveWithin(ctx, searchResultProbe(term), c.probe)
		if err != nil {
			return err
		}
		if res.Found() {
			c.logger.Info("country search matched", "term", term)
			return nil
		}
		c.logger.Info("no results for search term", "term", term)
	}

	return nil
}

// verifyCountry reads the ship-to widget. A mismatch is only logged; the
// collect step is the real test.
func (c *Collector) verifyCountry(ctx context.Context) {
	html, err := c.driver.Content(ctx)
	if err != nil {
		c.logger.Warn("could not read page for country check", "error", err)
		return
	}

	shipTo, err := c.parser.ParseShipTo(html)
	if err != nil {
		c.logger.Warn("country check failed", "error", err)
		return
	}
	c.shipTo = shipTo

	switch {
	case shipTo.Confirmed:
		c.logger.Info("korea confirmed as ship-to country", "text", shipTo.Text)
	case shipTo.IsKorea():
		c.logger.Info("korea selected as ship-to country", "text", shipTo.Text)
	default:
		c.logger.Warn("ship-to country is not korea", "text", shipTo.Text, "country", shipTo.Country)
	}
}

func (c *Collector) navigate(ctx context.Context) error {
	if err := c.gate.Confirm(ctx, "open coin page"); err != nil {
		return err
	}
	if err := c.driver.Navigate(ctx, c.coinPageURL); err != nil {
		return err
	}
	return c.pause(ctx, c.delays.Settle)
}

// collect clicks the collect button, moving the pointer onto it first.
func (c *Collector) collect(ctx context.Context) error {
	el, err := c.locate(ctx, collectButton)
	if err != nil {
		return err
	}
	if err := c.prepare(ctx, collectButton.Name, el); err != nil {
		return err
	}
	if err := el.Hover(ctx); err != nil {
		c.logger.Debug("hover failed", "target", collectButton.Name, "error", err)
	}
	if err := c.click(ctx, collectButton.Name, el); err != nil {
		return err
	}
	return c.pause(ctx, c.delays.Settle)
}
