package export

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#000000", color.NRGBA{A: 255}, true},
		{"#fff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, true},
		{"#3B82F6", color.NRGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 255}, true},
		{"#11223380", color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}, true},
		{"transparent", color.NRGBA{}, false},
		{"", color.NRGBA{}, false},
		{"#zzzzzz", color.NRGBA{}, false},
	}
	for _, tt := range tests {
		got, ok := parseColor(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestARGB(t *testing.T) {
	assert.Equal(t, "FF3B82F6", argb(color.NRGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF}))
}

func TestEMU(t *testing.T) {
	assert.Equal(t, int64(914400), emu(100))
	assert.Equal(t, int64(8778240), emu(960))
}
