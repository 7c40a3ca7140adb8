package tideterm

import (
	"image"
	"image/color"
	"io"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ScreenshotConfig controls how the terminal is rendered to an image.
// The zero value renders with basicfont.Face7x13 and the default palette.
type ScreenshotConfig struct {
	// Font face to use for rendering. If nil, uses basicfont.Face7x13.
	Font font.Face

	// CellWidth and CellHeight override the cell dimensions.
	// If zero, derived from font metrics.
	CellWidth  int
	CellHeight int

	// Palette is the 256-color palette. If nil, uses the terminal's theme,
	// and foregrounds are adjusted to stay readable on its background.
	Palette *[256]color.RGBA

	// DefaultFG and DefaultBG replace the theme's default colors.
	DefaultFG *color.RGBA
	DefaultBG *color.RGBA

	// CursorColor is the cursor color. If nil, the cursor inverts the cell.
	CursorColor *color.RGBA

	// HideCursor skips drawing the cursor.
	HideCursor bool
}

// LoadFont loads a TrueType or OpenType font from a file path.
func LoadFont(path string, size float64) (font.Face, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadFontFromReader(f, size)
}

// LoadFontFromReader loads a TrueType or OpenType font from an io.Reader.
func LoadFontFromReader(r io.Reader, size float64) (font.Face, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Screenshot renders the visible screen with default settings.
func (t *Terminal) Screenshot() *image.RGBA {
	return t.ScreenshotWithConfig(ScreenshotConfig{})
}

// ScreenshotWithConfig renders the visible screen to an RGBA image.
func (t *Terminal) ScreenshotWithConfig(cfg ScreenshotConfig) *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	face := cfg.Font
	if face == nil {
		face = basicfont.Face7x13
	}
	metrics := face.Metrics()

	cw, ch := cfg.CellWidth, cfg.CellHeight
	if cw == 0 {
		adv, _ := face.GlyphAdvance('M')
		if cw = adv.Ceil(); cw == 0 {
			cw = 7
		}
	}
	if ch == 0 {
		ch = metrics.Height.Ceil()
	}

	theme := ThemeFor(t.dark)
	palette := cfg.Palette
	if palette == nil {
		palette = &theme.Palette
	}
	readable := cfg.Palette == nil && cfg.DefaultBG == nil
	defFG, defBG := theme.Foreground, theme.Background
	if cfg.DefaultFG != nil {
		defFG = *cfg.DefaultFG
	}
	if cfg.DefaultBG != nil {
		defBG = *cfg.DefaultBG
	}

	img := image.NewRGBA(image.Rect(0, 0, t.cols*cw, t.rows*ch))
	draw.Draw(img, img.Bounds(), image.NewUniform(defBG), image.Point{}, draw.Src)

	ascent := metrics.Ascent.Ceil()
	for row := 0; row < t.rows; row++ {
		line := t.activeBuffer.Row(row)
		for col := range line {
			cell := &line[col]
			if cell.IsWideSpacer() {
				continue
			}
			width := 1
			if cell.IsWide() {
				width = 2
			}
			rect := image.Rect(col*cw, row*ch, (col+width)*cw, (row+1)*ch)

			fg := cell.Fg.Resolve(true, palette, defFG, defBG)
			if readable {
				fg = theme.Readable(fg)
			}
			bg := cell.Bg.Resolve(false, palette, defFG, defBG)
			if cell.HasFlag(CellFlagReverse) {
				fg, bg = bg, fg
			}
			if cell.HasFlag(CellFlagDim) {
				fg = dim(fg)
			}
			if bg != defBG {
				draw.Draw(img, rect, image.NewUniform(bg), image.Point{}, draw.Src)
			}
			if cell.HasFlag(CellFlagHidden) || cell.Char == ' ' || cell.Char == 0 {
				continue
			}

			baseline := rect.Min.Y + ascent
			d := &font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(fg),
				Face: face,
				Dot:  fixed.P(rect.Min.X, baseline),
			}
			d.DrawString(string(cell.Char))
			if cell.HasFlag(CellFlagBold) {
				d.Dot = fixed.P(rect.Min.X+1, baseline)
				d.DrawString(string(cell.Char))
			}

			if cell.HasFlag(CellFlagAnyUnderline) {
				uc := fg
				if !cell.UnderlineColor.IsDefault() {
					uc = cell.UnderlineColor.Resolve(true, palette, defFG, defBG)
				}
				if y := baseline + 2; y < rect.Max.Y {
					fillRect(img, image.Rect(rect.Min.X, y, rect.Max.X, y+1), uc)
				}
			}
			if cell.HasFlag(CellFlagStrike) {
				y := rect.Min.Y + ch/2
				fillRect(img, image.Rect(rect.Min.X, y, rect.Max.X, y+1), fg)
			}
		}
	}

	if !cfg.HideCursor {
		cursor := t.cursorState()
		if cursor.Visible || cursor.Inferred {
			t.drawCursor(img, cursor, cw, ch, cfg.CursorColor)
		}
	}
	return img
}

// drawCursor paints the cursor in its style. Caller holds the lock.
func (t *Terminal) drawCursor(img *image.RGBA, cursor CursorState, cw, ch int, c *color.RGBA) {
	x, y := cursor.Col*cw, cursor.Row*ch
	rect := image.Rect(x, y, x+cw, y+ch)
	switch cursor.Style.String() {
	case "underline":
		rect.Min.Y = rect.Max.Y - 2
	case "bar":
		rect.Max.X = rect.Min.X + 2
	}
	rect = rect.Intersect(img.Bounds())

	if c != nil {
		fillRect(img, rect, *c)
		return
	}
	for py := rect.Min.Y; py < rect.Max.Y; py++ {
		for px := rect.Min.X; px < rect.Max.X; px++ {
			e := img.RGBAAt(px, py)
			img.SetRGBA(px, py, color.RGBA{R: 255 - e.R, G: 255 - e.G, B: 255 - e.B, A: 255})
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}
