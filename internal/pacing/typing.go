package pacing

import "time"

const typoAlphabet = "qwertyuiopasdfghjklzxcvbnm"

// KeyBackspace is the key name emitted to undo a typo.
const KeyBackspace = "Backspace"

// Keystroke is either literal Text or a named Key, followed by Delay.
type Keystroke struct {
	Text  string
	Key   string
	Delay time.Duration
}

type TypingProfile struct {
	TypoRate   float64
	TypoPause  Range
	FixPause   Range
	KeyPause   Range
	ThinkRate  float64
	ThinkPause Range
}

func DefaultTypingProfile() TypingProfile {
	return TypingProfile{
		TypoRate:   0.01,
		TypoPause:  Range{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
		FixPause:   Range{Min: 200 * time.Millisecond, Max: 500 * time.Millisecond},
		KeyPause:   Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		ThinkRate:  0.05,
		ThinkPause: Range{Min: 500 * time.Millisecond, Max: 1200 * time.Millisecond},
	}
}

// Keystrokes plans how text is typed: an occasional wrong letter that gets
// deleted, uneven gaps between keys, and now and then a longer pause.
func (p *Pacer) Keystrokes(text string, prof TypingProfile) []Keystroke {
	plan := make([]Keystroke, 0, len(text))

	for _, r := range text {
		if p.chance(prof.TypoRate) {
			plan = append(plan,
				Keystroke{Text: p.pick(typoAlphabet), Delay: prof.TypoPause.Pick(p)},
				Keystroke{Key: KeyBackspace, Delay: prof.FixPause.Pick(p)},
			)
		}

		delay := prof.KeyPause.Pick(p)
		if p.chance(prof.ThinkRate) {
			delay += prof.ThinkPause.Pick(p)
		}
		plan = append(plan, Keystroke{Text: string(r), Delay: delay})
	}

	return plan
}

// Typed returns the text a plan leaves in the field.
func Typed(plan []Keystroke) string {
	var out []rune
	for _, k := range plan {
		switch {
		case k.Key == KeyBackspace:
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case k.Text != "":
			out = append(out, []rune(k.Text)...)
		}
	}
	return string(out)
}
