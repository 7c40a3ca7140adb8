// Package tideterm is a terminal emulation engine: it runs a child process on
// a pseudo-terminal, interprets the VT/xterm byte stream it produces, and
// keeps a character grid that a renderer can draw from.
//
// The package has no display of its own. It is meant for:
//   - Terminal front ends that want the emulation without the drawing
//   - Multiplexers and session recorders
//   - Web terminals that stream screen updates to a browser
//   - Automated testing of CLI and full-screen programs
//
// # Quick Start
//
// Feed bytes into a Terminal and read the grid back:
//
//	term := tideterm.New()
//	term.WriteString("\x1b[31mHello \x1b[32mWorld\x1b[0m!")
//	fmt.Println(term.String()) // "Hello World!"
//
// Or run a program and let a Session do the feeding:
//
//	s, err := tideterm.Open(ctx, tideterm.SessionOptions{Rows: 24, Cols: 80})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for ev := range s.Events() {
//	    switch ev.Kind {
//	    case tideterm.EventOutput:
//	        draw(s.Sync())
//	    case tideterm.EventExit:
//	        return ev.Err
//	    }
//	}
//
// # Architecture
//
//   - [Session]: a Terminal wired to a child on a PTY (package pty)
//   - [Terminal]: applies parser actions to the screens
//   - [Buffer]: a grid of cells with optional scrollback
//   - [Cell]: one character with colors and attributes
//   - parser.Parser: the escape sequence state machine (package parser)
//
// # Terminal
//
// Terminal implements [io.Writer]. Input may be split anywhere, including in
// the middle of an escape sequence or a UTF-8 character; the result is the
// same as feeding it in one piece.
//
//	term := tideterm.New(
//	    tideterm.WithSize(24, 80),
//	    tideterm.WithScrollback(tideterm.NewRingScrollback(10000)),
//	    tideterm.WithResponse(ptyWriter), // DSR/DA replies
//	)
//
// # Screens
//
// The primary screen keeps scrollback. The alternate screen, used by
// full-screen programs (CSI ?1049h/l, ?47, ?1047), never does. Leaving the
// alternate screen restores the primary content untouched.
//
//	if term.IsAlternateScreen() {
//	    // vim, less, htop...
//	}
//
// # Rendering
//
// [Terminal.Sync] returns a [RenderDiff] holding only the rows that changed
// since the previous call. Rows are compared by fingerprint, so a row that
// is rewritten with identical content is not reported. Resizes, screen
// switches and [Terminal.Invalidate] make the next diff a full redraw.
//
//	diff := term.Sync()
//	for _, row := range diff.Rows {
//	    if row.Changed {
//	        paint(row.Index, row.Cells)
//	    }
//	}
//	moveCursor(diff.Cursor)
//
// [Terminal.ScrollDisplay] shows older lines from scrollback; the diff then
// reports the scrolled rows and [RenderDiff.DisplayOffset]. Output keeps a
// scrolled view on the same lines until [Terminal.ScrollToBottom].
//
// Colors 0-15 and the default colors come from a [Theme]. Switching with
// [Terminal.SetDarkMode] makes the next diff a full redraw.
//
// When an application hides the cursor and draws its own in reverse video,
// [CursorState.Inferred] is set and the position points at that cell.
//
// # Resizing
//
// [Terminal.Resize] is a no-op for the current size. Otherwise it bumps
// [Terminal.Generation]. Shrinking rows moves lines from the top into
// scrollback; columns are truncated, not reflowed. [Session.Resize] updates
// the grid at once and debounces the PTY resize so a window drag sends a
// single SIGWINCH.
//
// # Snapshots and Screenshots
//
//	snap := term.Snapshot(tideterm.SnapshotDetailStyled)
//	data, _ := json.Marshal(snap)
//
//	img := term.Screenshot() // *image.RGBA
//
// # Thread Safety
//
// All Terminal and Session methods are safe for concurrent use. Providers
// are called after the terminal lock is released, so they may call back
// into the Terminal.
package tideterm
