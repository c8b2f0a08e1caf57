package export

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// parseColor reads #rgb, #rrggbb and #rrggbbaa. ok is false for
// "transparent", empty and unparseable values.
func parseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return c, c.A > 0
}

// argb formats c the way pptx fills and fonts expect it.
func argb(c color.NRGBA) string {
	return fmt.Sprintf("%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
}
