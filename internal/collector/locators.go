package collector

import (
	"fmt"

	"github.com/maltedev/coin-collector/internal/resolve"
)

// Labels the site renders for Korea, English first.
var koreaLabels = []string{"Korea", "대한민국"}

// Labels the collect button has carried across locales.
var collectLabels = []string{"Collect", "출석체크", "적립하기", "체크인"}

func css(pattern string) resolve.Alternative {
	return resolve.Alternative{Strategy: resolve.StrategyCSS, Pattern: pattern}
}

func xpath(pattern string, variants ...string) resolve.Alternative {
	return resolve.Alternative{Strategy: resolve.StrategyXPath, Pattern: pattern, Variants: variants}
}

func script(body string, variants ...string) resolve.Alternative {
	return resolve.Alternative{Strategy: resolve.StrategyScript, Pattern: body, Variants: variants}
}

var (
	emailInput = resolve.LocatorSpec{
		Name:         "email input",
		Alternatives: []resolve.Alternative{css("input.cosmos-input[label='Email']")},
	}

	continueButton = resolve.LocatorSpec{
		Name: "continue button",
		Alternatives: []resolve.Alternative{
			xpath("//button[contains(@class, 'cosmos-btn-primary') and .//span[text()='Continue']]"),
		},
	}

	passwordInput = resolve.LocatorSpec{
		Name:         "password input",
		Alternatives: []resolve.Alternative{css("#fm-login-password")},
	}

	signInButton = resolve.LocatorSpec{
		Name: "sign in button",
		Alternatives: []resolve.Alternative{
			xpath("//button[contains(@class, 'cosmos-btn-primary') and .//span[text()='Sign in']]"),
		},
	}

	shipToDropdown = resolve.LocatorSpec{
		Name: "ship-to dropdown",
		Alternatives: []resolve.Alternative{
			xpath("//div[contains(@class, 'ship-to--menuItem--')]"),
			xpath("//div[contains(@class, 'ship-to--text--')]/b[contains(text(), 'USD')]"),
			xpath("//div[contains(@class, 'es--wrap--')]/div/div[contains(@class, 'ship-to--menuItem--')]"),
		},
	}

	countrySelector = resolve.LocatorSpec{
		Name:         "country selector",
		Alternatives: []resolve.Alternative{xpath("//div[contains(@class, 'select--text--1b85oDo')]")},
	}

	countrySearchInput = resolve.LocatorSpec{
		Name:         "country search input",
		Alternatives: []resolve.Alternative{xpath("//div[contains(@class, 'select--search--20Pss08')]/input")},
	}

	koreaOption = resolve.LocatorSpec{
		Name: "korea option",
		Alternatives: []resolve.Alternative{
			xpath("//div[@class='select--item--32FADYB' and contains(., '{label}')]", koreaLabels...),
			xpath("//div[contains(@class, 'select--item') and .//span[contains(text(), '{label}')]]", koreaLabels...),
			script(`return Array.from(document.querySelectorAll('div')).find(el =>
	el.textContent.includes('{label}') &&
	(String(el.className).includes('item') || String(el.className).includes('option'))) || null;`, koreaLabels...),
			xpath("//span[contains(@class, 'country-flag') and contains(@class, 'KR')]/following-sibling::span/.."),
		},
	}

	saveButton = resolve.LocatorSpec{
		Name:         "save button",
		Alternatives: []resolve.Alternative{xpath("//div[contains(@class, 'es--saveBtn--w8EuBuy')]")},
	}

	collectButton = resolve.LocatorSpec{
		Name: "collect button",
		Alternatives: []resolve.Alternative{
			xpath("//div[contains(@class, 'checkin-button')]"),
			xpath("//div[contains(text(), '{label}') and contains(@class, 'button')]", collectLabels...),
			xpath("//button[contains(@class, 'check-in') or contains(@class, 'checkin')]"),
			xpath("//div[contains(@class, 'coin') and contains(@class, 'collect')]"),
			script(`return Array.from(document.querySelectorAll('div, button, a')).find(el => {
	const text = el.textContent.toLowerCase();
	return ['collect', 'check', '출석', '적립', '체크'].some(w => text.includes(w)) &&
		(String(el.className).includes('button') || el.tagName === 'BUTTON' || el.style.cursor === 'pointer');
}) || null;`),
		},
	}
)

// searchResultProbe matches any dropdown entry mentioning term. It tells
// whether typing term into the country search produced results.
func searchResultProbe(term string) resolve.LocatorSpec {
	return resolve.LocatorSpec{
		Name: fmt.Sprintf("search results for %q", term),
		Alternatives: []resolve.Alternative{
			script(fmt.Sprintf(`return Array.from(document.querySelectorAll('div')).find(el =>
	el.textContent.includes(%q) &&
	(String(el.className).includes('item') || String(el.className).includes('option'))) || null;`, term)),
		},
	}
}

// Catalogue lists every static locator, for inspection and tests.
func Catalogue() []resolve.LocatorSpec {
	return []resolve.LocatorSpec{
		emailInput,
		continueButton,
		passwordInput,
		signInButton,
		shipToDropdown,
		countrySelector,
		countrySearchInput,
		koreaOption,
		saveButton,
		collectButton,
	}
}
