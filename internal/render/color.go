package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/mediprint/compositor/internal/models"
)

// ParseColor understands #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba() and
// the keywords in models.NamedColors.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := models.NamedColors[s]; ok {
		return c, nil
	}

	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[5:len(s)-1], true)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[4:len(s)-1], false)
	}
	return color.NRGBA{}, fmt.Errorf("unknown color %q", s)
}

// parseHex splits off an optional alpha digit pair and hands the rest to
// colorful.Hex, which only knows #rgb and #rrggbb.
func parseHex(s string) (color.NRGBA, error) {
	alpha := uint8(0xff)
	digits := ""
	switch len(s) {
	case 5:
		digits, s = strings.Repeat(s[4:], 2), s[:4]
	case 9:
		digits, s = s[7:], s[:7]
	case 4, 7:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %s", s)
	}
	if digits != "" {
		a, err := strconv.ParseUint(digits, 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex alpha %s: %w", digits, err)
		}
		alpha = uint8(a)
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %s: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// parseFunc reads the argument list of rgb() and rgba().
func parseFunc(args string, withAlpha bool) (color.NRGBA, error) {
	parts := strings.Split(args, ",")
	want := 3
	if withAlpha {
		want = 4
	}
	if len(parts) != want {
		return color.NRGBA{}, fmt.Errorf("expected %d color components, got %d", want, len(parts))
	}

	var ch [4]uint8
	ch[3] = 0xff
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color component %q", parts[i])
		}
		ch[i] = uint8(n + 0.5)
	}
	if withAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid alpha %q", parts[3])
		}
		ch[3] = uint8(a*255 + 0.5)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}
