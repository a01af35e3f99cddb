package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const CountryKorea = "KR"

// ShipTo is the state of the header ship-to widget.
type ShipTo struct {
	Text    string
	Country string
	// Confirmed is set when the site's own language code marker is present,
	// which is a stronger signal than a country name match.
	Confirmed bool
}

func (s *ShipTo) IsKorea() bool {
	return s.Country == CountryKorea
}

type ShipToParser struct {
	selectors     []string
	koreaMarkers  []string
	confirmMarker string
}

func NewShipToParser() *ShipToParser {
	return &ShipToParser{
		selectors: []string{
			`div[class*="ship-to--text--"]`,
			`div[class*="ship-to--menuItem--"]`,
		},
		koreaMarkers:  []string{"Korea", "한국", "대한민국"},
		confirmMarker: "KO/",
	}
}

func (p *ShipToParser) ParseShipTo(html string) (*ShipTo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	text := p.extractText(doc)
	if text == "" {
		return nil, ErrShipToNotFound
	}

	shipTo := &ShipTo{Text: text}

	if strings.Contains(text, p.confirmMarker) {
		shipTo.Country = CountryKorea
		shipTo.Confirmed = true
		return shipTo, nil
	}

	for _, marker := range p.koreaMarkers {
		if strings.Contains(text, marker) {
			shipTo.Country = CountryKorea
			break
		}
	}

	return shipTo, nil
}

func (p *ShipToParser) extractText(doc *goquery.Document) string {
	for _, sel := range p.selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := strings.Join(strings.Fields(node.Text()), " "); text != "" {
			return text
		}
	}
	return ""
}
