package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShipTo(t *testing.T) {
	parser := NewShipToParser()

	tests := []struct {
		name      string
		html      string
		text      string
		korea     bool
		confirmed bool
	}{
		{
			name: "Language code marker",
			html: `<div class="es--wrap--x"><div class="ship-to--menuItem--abc">
					<div class="ship-to--text--3H_PaoC"><span class="flag KR"></span>
						<b>KO/</b><b>KRW</b>
					</div></div></div>`,
			text:      "KO/ KRW",
			korea:     true,
			confirmed: true,
		},
		{
			name:  "English country name",
			html:  `<div class="ship-to--text--1"><b>Korea</b> / USD</div>`,
			text:  "Korea / USD",
			korea: true,
		},
		{
			name:  "Korean country name",
			html:  `<div class="ship-to--text--1">대한민국 / KRW</div>`,
			text:  "대한민국 / KRW",
			korea: true,
		},
		{
			name:  "Short Korean name",
			html:  `<div class="ship-to--text--1">한국</div>`,
			text:  "한국",
			korea: true,
		},
		{
			name: "Other country",
			html: `<div class="ship-to--text--1"><b>EN/</b><b>USD</b></div>`,
			text: "EN/ USD",
		},
		{
			name:  "Falls back to menu item",
			html:  `<div class="ship-to--menuItem--9">Korea</div>`,
			text:  "Korea",
			korea: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shipTo, err := parser.ParseShipTo(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.text, shipTo.Text)
			assert.Equal(t, tt.korea, shipTo.IsKorea())
			assert.Equal(t, tt.confirmed, shipTo.Confirmed)
		})
	}
}

func TestParseShipTo_Missing(t *testing.T) {
	_, err := NewShipToParser().ParseShipTo(`<html><body><div class="header">Welcome</div></body></html>`)
	assert.ErrorIs(t, err, ErrShipToNotFound)
}
