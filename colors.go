package tideterm

import (
	"fmt"
	"image/color"
)

// Theme is a 256-color palette with the default colors drawn against it.
// Entries 0-15 differ between themes; the color cube and grayscale ramp are
// shared.
type Theme struct {
	Dark       bool
	Palette    [256]color.RGBA
	Foreground color.RGBA
	Background color.RGBA
	Cursor     color.RGBA
}

// DarkTheme is for light text on a dark background.
var DarkTheme = newTheme(true, [16]color.RGBA{
	{26, 26, 36, 255},
	{255, 85, 85, 255},
	{80, 250, 123, 255},
	{240, 230, 141, 255},
	{100, 149, 255, 255},
	{189, 115, 255, 255},
	{89, 222, 237, 255},
	{199, 204, 222, 255},

	{103, 107, 135, 255},
	{255, 120, 107, 255},
	{115, 255, 153, 255},
	{255, 250, 141, 255},
	{135, 179, 255, 255},
	{217, 153, 255, 255},
	{120, 240, 255, 255},
	{242, 245, 250, 255},
}, color.RGBA{230, 232, 242, 255}, color.RGBA{0, 0, 0, 255})

// LightTheme is for dark text on a warm light background. Its named colors
// are darker than usual so they stay readable.
var LightTheme = newTheme(false, [16]color.RGBA{
	{0, 0, 0, 255},
	{173, 20, 20, 255},
	{13, 102, 26, 255},
	{115, 89, 0, 255},
	{26, 56, 166, 255},
	{122, 38, 166, 255},
	{0, 89, 107, 255},
	{77, 71, 64, 255},

	{64, 59, 51, 255},
	{191, 31, 26, 255},
	{20, 122, 31, 255},
	{133, 102, 0, 255},
	{31, 77, 191, 255},
	{140, 56, 191, 255},
	{13, 115, 128, 255},
	{128, 122, 112, 255},
}, color.RGBA{26, 20, 13, 255}, color.RGBA{240, 235, 227, 255})

func newTheme(dark bool, named [16]color.RGBA, fg, bg color.RGBA) *Theme {
	th := &Theme{Dark: dark, Foreground: fg, Background: bg, Cursor: fg}
	copy(th.Palette[:], named[:])

	i := 16
	levels := [6]uint8{0, 95, 135, 175, 215, 255}
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				th.Palette[i] = color.RGBA{R: levels[r], G: levels[g], B: levels[b], A: 255}
				i++
			}
		}
	}
	for j := 0; j < 24; j++ {
		gray := uint8(8 + j*10)
		th.Palette[232+j] = color.RGBA{gray, gray, gray, 255}
	}
	return th
}

// ThemeFor returns DarkTheme or LightTheme.
func ThemeFor(dark bool) *Theme {
	if dark {
		return DarkTheme
	}
	return LightTheme
}

// Resolve converts c to RGBA against the theme. fg selects which default
// applies.
func (th *Theme) Resolve(c Color, fg bool) color.RGBA {
	return c.Resolve(fg, &th.Palette, th.Foreground, th.Background)
}

// Hex renders c as "#rrggbb" against the theme. The default color renders
// as an empty string.
func (th *Theme) Hex(c Color) string {
	if c.IsDefault() {
		return ""
	}
	rgba := th.Resolve(c, true)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}

// Readable scales a foreground color until it has enough contrast with the
// theme background: at least 4.5:1 on dark, 3.5:1 on light.
func (th *Theme) Readable(c color.RGBA) color.RGBA {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	lum := 0.2126*r + 0.7152*g + 0.0722*b

	var scale float64
	if th.Dark {
		const bgLum, minContrast = 0.056, 4.5
		if (lum+0.05)/(bgLum+0.05) >= minContrast {
			return c
		}
		target := minContrast*(bgLum+0.05) - 0.05
		if lum <= 0.01 {
			v := channel(target)
			return color.RGBA{v, v, v, c.A}
		}
		scale = target / lum
	} else {
		const bgLum, minContrast = 0.92, 3.5
		if (bgLum+0.05)/(lum+0.05) >= minContrast {
			return c
		}
		scale = 0.15
		if lum > 0.001 {
			scale = min((bgLum+0.05)/minContrast-0.05, lum) / lum
		}
	}
	return color.RGBA{channel(r * scale), channel(g * scale), channel(b * scale), c.A}
}

// channel converts a 0-1 intensity to a byte, clamping out-of-range values.
func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// DefaultPalette is the dark theme's palette.
var DefaultPalette = DarkTheme.Palette

// DefaultForeground is the dark theme's text color.
var DefaultForeground = DarkTheme.Foreground

// DefaultBackground is the dark theme's background (black).
var DefaultBackground = DarkTheme.Background

// DefaultCursorColor is the dark theme's cursor color.
var DefaultCursorColor = DarkTheme.Cursor

// ColorKind says how a Color is resolved at render time.
type ColorKind uint8

const (
	// ColorDefault is the terminal's default foreground or background,
	// depending on which slot the color sits in.
	ColorDefault ColorKind = iota
	// ColorIndexed refers to a palette entry 0-255.
	ColorIndexed
	// ColorRGB is a direct 24-bit color.
	ColorRGB
)

// Color is a cell color. The zero value is the default color.
// It is a plain value so cells can be copied and compared without allocation.
type Color struct {
	Kind  ColorKind
	Index uint8
	R     uint8
	G     uint8
	B     uint8
}

// IndexedColor returns a palette color.
func IndexedColor(index uint8) Color {
	return Color{Kind: ColorIndexed, Index: index}
}

// RGBColor returns a 24-bit color.
func RGBColor(r, g, b uint8) Color {
	return Color{Kind: ColorRGB, R: r, G: g, B: b}
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool {
	return c.Kind == ColorDefault
}

// Resolve converts c to RGBA. fg selects which default applies.
// A nil palette means DefaultPalette.
func (c Color) Resolve(fg bool, palette *[256]color.RGBA, defaultFG, defaultBG color.RGBA) color.RGBA {
	if palette == nil {
		palette = &DefaultPalette
	}
	switch c.Kind {
	case ColorIndexed:
		return palette[c.Index]
	case ColorRGB:
		return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	default:
		if fg {
			return defaultFG
		}
		return defaultBG
	}
}

// RGBA implements color.Color. The default color resolves to
// DefaultForeground.
func (c Color) RGBA() (r, g, b, a uint32) {
	return c.Resolve(true, nil, DefaultForeground, DefaultBackground).RGBA()
}

// Hex renders c as "#rrggbb" using the dark theme. The default color
// renders as an empty string so that callers can omit it.
func (c Color) Hex() string {
	return DarkTheme.Hex(c)
}

func (c Color) String() string {
	switch c.Kind {
	case ColorIndexed:
		return fmt.Sprintf("idx(%d)", c.Index)
	case ColorRGB:
		return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
	default:
		return "default"
	}
}

// dim darkens a resolved color for the SGR 2 attribute.
func dim(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * 0.66),
		G: uint8(float64(c.G) * 0.66),
		B: uint8(float64(c.B) * 0.66),
		A: c.A,
	}
}
