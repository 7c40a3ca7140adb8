package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/pflag"

	"github.com/tidehq/tideterm"
)

func runCommand(args []string) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to tideterm.yaml (default $"+configEnv+")")
	shell := flags.String("shell", "", "program to run instead of the configured shell")
	logFile := flags.String("log-file", "", "write log records to this file")
	debug := flags.Bool("debug", false, "log at debug level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *shell != "" {
		cfg.Shell = *shell
		cfg.Args = flags.Args()
	}

	logger, closeLog, err := openLogFile(*logFile, *debug)
	if err != nil {
		return err
	}
	defer closeLog()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()
	screen.EnablePaste()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cols, rows := screen.Size()
	s, err := tideterm.Open(ctx, cfg.SessionOptions(rows, cols, logger))
	if err != nil {
		return err
	}
	defer s.Close()

	h := &host{screen: screen, session: s, logger: logger}
	return h.loop(cfg.SyncInterval)
}

// host draws a session onto a tcell screen and forwards input to it.
type host struct {
	screen  tcell.Screen
	session *tideterm.Session
	logger  *slog.Logger

	inPaste bool
	paste   []byte
}

func (h *host) loop(interval time.Duration) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go h.screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.draw(h.session.Sync())
	dirty := false
	for {
		select {
		case ev := <-events:
			if ev == nil {
				return nil
			}
			if h.handleScreenEvent(ev) {
				dirty = true
			}

		case ev := <-h.session.Events():
			switch ev.Kind {
			case tideterm.EventOutput:
				dirty = true
			case tideterm.EventTitle:
				h.screen.SetTitle(ev.Title)
			case tideterm.EventBell:
				_ = h.screen.Beep()
			case tideterm.EventExit:
				h.draw(h.session.Sync())
				h.logger.Info("child exited", "code", ev.ExitCode)
				return ev.Err
			}

		case <-ticker.C:
			if dirty {
				h.draw(h.session.Sync())
				dirty = false
			}
		}
	}
}

// handleScreenEvent reports whether the screen needs a redraw.
func (h *host) handleScreenEvent(ev tcell.Event) bool {
	term := h.session.Terminal()
	switch ev := ev.(type) {
	case *tcell.EventResize:
		cols, rows := ev.Size()
		if err := h.session.Resize(rows, cols); err != nil {
			h.logger.Warn("resize failed", "error", err)
		}
		h.screen.Sync()
		return true

	case *tcell.EventPaste:
		if ev.Start() {
			h.inPaste = true
			h.paste = h.paste[:0]
			return false
		}
		h.inPaste = false
		h.send(pasteBytes(h.paste, term.HasMode(tideterm.ModeBracketedPaste)))
		return false

	case *tcell.EventKey:
		if delta := scrollDelta(ev, term.Rows()); delta != 0 && !h.inPaste {
			return term.ScrollDisplay(delta)
		}
		b := encodeKey(ev.Key(), ev.Rune(), ev.Modifiers(), term.HasMode(tideterm.ModeCursorKeys))
		if h.inPaste {
			h.paste = append(h.paste, b...)
			return false
		}
		h.send(b)
	}
	return false
}

func (h *host) send(b []byte) {
	if len(b) == 0 {
		return
	}
	h.session.Terminal().ScrollToBottom()
	if err := h.session.WriteInput(b); err != nil && !errors.Is(err, tideterm.ErrExited) {
		h.logger.Warn("write to child failed", "error", err)
	}
}

// scrollDelta maps Shift+PgUp and Shift+PgDn to half-page viewport moves.
func scrollDelta(ev *tcell.EventKey, rows int) int {
	if ev.Modifiers()&tcell.ModShift == 0 {
		return 0
	}
	page := max(rows/2, 1)
	switch ev.Key() {
	case tcell.KeyPgUp:
		return page
	case tcell.KeyPgDn:
		return -page
	}
	return 0
}

// draw paints the changed rows of diff.
func (h *host) draw(diff tideterm.RenderDiff) {
	if diff.Full {
		h.screen.Clear()
	}
	for _, row := range diff.Rows {
		if !row.Changed {
			continue
		}
		for col := range row.Cells {
			cell := &row.Cells[col]
			if cell.IsWideSpacer() {
				continue
			}
			ch := cell.Char
			if ch == 0 || cell.HasFlag(tideterm.CellFlagHidden) {
				ch = ' '
			}
			h.screen.SetContent(col, row.Index, ch, nil, cellStyle(cell))
		}
	}

	c := diff.Cursor
	if c.Visible {
		h.screen.SetCursorStyle(cursorStyle(c.Style))
		h.screen.ShowCursor(c.Col, c.Row)
	} else {
		h.screen.HideCursor()
	}
	h.screen.Show()
}

func tcellColor(c tideterm.Color) tcell.Color {
	switch c.Kind {
	case tideterm.ColorIndexed:
		return tcell.PaletteColor(int(c.Index))
	case tideterm.ColorRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorReset
	}
}

var underlineStyles = []struct {
	flag  tideterm.CellFlags
	style tcell.UnderlineStyle
}{
	{tideterm.CellFlagUnderline, tcell.UnderlineStyleSolid},
	{tideterm.CellFlagDoubleUnderline, tcell.UnderlineStyleDouble},
	{tideterm.CellFlagCurlyUnderline, tcell.UnderlineStyleCurly},
	{tideterm.CellFlagDottedUnderline, tcell.UnderlineStyleDotted},
	{tideterm.CellFlagDashedUnderline, tcell.UnderlineStyleDashed},
}

func cellStyle(c *tideterm.Cell) tcell.Style {
	st := tcell.StyleDefault.
		Foreground(tcellColor(c.Fg)).
		Background(tcellColor(c.Bg)).
		Bold(c.HasFlag(tideterm.CellFlagBold)).
		Dim(c.HasFlag(tideterm.CellFlagDim)).
		Italic(c.HasFlag(tideterm.CellFlagItalic)).
		Blink(c.HasFlag(tideterm.CellFlagBlinkSlow | tideterm.CellFlagBlinkFast)).
		Reverse(c.HasFlag(tideterm.CellFlagReverse)).
		StrikeThrough(c.HasFlag(tideterm.CellFlagStrike))

	for _, u := range underlineStyles {
		if c.HasFlag(u.flag) {
			st = st.Underline(u.style)
			if !c.UnderlineColor.IsDefault() {
				st = st.Underline(tcellColor(c.UnderlineColor))
			}
			break
		}
	}
	if c.Hyperlink != nil {
		st = st.Url(c.Hyperlink.URI)
	}
	return st
}

func cursorStyle(s tideterm.CursorStyle) tcell.CursorStyle {
	switch s {
	case tideterm.CursorStyleSteadyBlock:
		return tcell.CursorStyleSteadyBlock
	case tideterm.CursorStyleBlinkingUnderline:
		return tcell.CursorStyleBlinkingUnderline
	case tideterm.CursorStyleSteadyUnderline:
		return tcell.CursorStyleSteadyUnderline
	case tideterm.CursorStyleBlinkingBar:
		return tcell.CursorStyleBlinkingBar
	case tideterm.CursorStyleSteadyBar:
		return tcell.CursorStyleSteadyBar
	default:
		return tcell.CursorStyleBlinkingBlock
	}
}
