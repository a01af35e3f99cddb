package parser

import "errors"

var ErrShipToNotFound = errors.New("ship-to widget not found")

// Parser reads account state out of rendered page HTML.
type Parser interface {
	ParseShipTo(html string) (*ShipTo, error)
}
