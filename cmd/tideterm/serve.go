package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/tidehq/tideterm"
)

const writeWait = 5 * time.Second

// frame is one JSON message from server to client.
type frame struct {
	Type       string                   `json:"type"` // diff, title, bell, exit
	Full       bool                     `json:"full,omitempty"`
	Generation uint64                   `json:"generation,omitempty"`
	Alternate  bool                     `json:"alternate,omitempty"`
	Dark       bool                     `json:"dark,omitempty"`
	Offset     int                      `json:"offset,omitempty"`
	Cursor     *tideterm.SnapshotCursor `json:"cursor,omitempty"`
	Rows       []frameRow               `json:"rows,omitempty"`
	Title      string                   `json:"title,omitempty"`
	ExitCode   *int                     `json:"exit_code,omitempty"`
}

type frameRow struct {
	Index int `json:"index"`
	tideterm.SnapshotLine
	URLs []tideterm.Span `json:"urls,omitempty"`
}

// controlMessage is a text frame from the client: resize, scroll, bottom
// or theme.
type controlMessage struct {
	Type  string `json:"type"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Lines int    `json:"lines"`
	Dark  bool   `json:"dark"`
}

// controlSession is the part of a Session that control messages drive.
type controlSession interface {
	Resize(rows, cols int) error
	Terminal() *tideterm.Terminal
}

// applyControl carries out one control message.
func applyControl(s controlSession, msg controlMessage) error {
	switch msg.Type {
	case "resize":
		return s.Resize(msg.Rows, msg.Cols)
	case "scroll":
		s.Terminal().ScrollDisplay(msg.Lines)
	case "bottom":
		s.Terminal().ScrollToBottom()
	case "theme":
		s.Terminal().SetDarkMode(msg.Dark)
	default:
		return fmt.Errorf("unknown control message %q", msg.Type)
	}
	return nil
}

// diffFrame converts a render diff, keeping only changed rows.
func diffFrame(diff tideterm.RenderDiff) frame {
	f := frame{
		Type:       "diff",
		Full:       diff.Full,
		Generation: diff.Generation,
		Alternate:  diff.Alternate,
		Dark:       diff.Dark,
		Offset:     diff.DisplayOffset,
		Cursor: &tideterm.SnapshotCursor{
			Row:      diff.Cursor.Row,
			Col:      diff.Cursor.Col,
			Visible:  diff.Cursor.Visible,
			Style:    diff.Cursor.Style.String(),
			Inferred: diff.Cursor.Inferred,
		},
	}
	theme := tideterm.ThemeFor(diff.Dark)
	for _, row := range diff.Rows {
		if !row.Changed {
			continue
		}
		f.Rows = append(f.Rows, frameRow{
			Index:        row.Index,
			SnapshotLine: tideterm.LineSnapshot(row.Cells, tideterm.SnapshotDetailStyled, theme),
			URLs:         row.URLs,
		})
	}
	return f
}

func serveCommand(args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to tideterm.yaml (default $"+configEnv+")")
	addr := flags.String("addr", "", "listen address (overrides config)")
	shell := flags.String("shell", "", "program to run instead of the configured shell")
	anyOrigin := flags.Bool("allow-any-origin", false, "accept websocket upgrades from any origin")
	debug := flags.Bool("debug", false, "log at debug level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *shell != "" {
		cfg.Shell = *shell
		cfg.Args = flags.Args()
	}
	logger := newLogger(os.Stderr, *debug)

	srv := &server{cfg: cfg, logger: logger}
	if *anyOrigin {
		srv.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Addr, "endpoint", "/ws")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type server struct {
	cfg      *Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// querySize reads ?rows=&cols=, falling back to 24x80.
func querySize(r *http.Request) (rows, cols int) {
	rows, cols = tideterm.DEFAULT_ROWS, tideterm.DEFAULT_COLS
	if v, err := strconv.Atoi(r.URL.Query().Get("rows")); err == nil && v > 0 {
		rows = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("cols")); err == nil && v > 0 {
		cols = v
	}
	return rows, cols
}

func (srv *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := srv.logger.With("remote", r.RemoteAddr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rows, cols := querySize(r)
	s, err := tideterm.Open(ctx, srv.cfg.SessionOptions(rows, cols, logger))
	if err != nil {
		logger.Error("session start failed", "error", err)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	defer s.Close()
	logger.Info("session started", "pid", s.Pid(), "rows", rows, "cols", cols)

	go func() {
		if err := pump(ctx, conn, s, srv.cfg.SyncInterval); err != nil {
			logger.Debug("pump stopped", "error", err)
		}
		_ = conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.Terminal().ScrollToBottom()
			if err := s.WriteInput(data); err != nil {
				logger.Debug("input dropped", "error", err)
			}
		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Debug("ignoring control message", "data", string(data))
				continue
			}
			if err := applyControl(s, msg); err != nil {
				logger.Warn("control message failed", "type", msg.Type, "error", err)
			}
		}
	}
}

// pump is the only writer on conn. It sends at most one diff per interval:
// after output, or when scrolling or a theme change altered the view.
func pump(ctx context.Context, conn *websocket.Conn, s *tideterm.Session, interval time.Duration) error {
	write := func(f frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := write(diffFrame(s.Sync())); err != nil {
		return err
	}
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-s.Events():
			var err error
			switch ev.Kind {
			case tideterm.EventOutput:
				dirty = true
			case tideterm.EventTitle:
				err = write(frame{Type: "title", Title: ev.Title})
			case tideterm.EventBell:
				err = write(frame{Type: "bell"})
			case tideterm.EventExit:
				if err := write(diffFrame(s.Sync())); err != nil {
					return err
				}
				code := ev.ExitCode
				if err := write(frame{Type: "exit", ExitCode: &code}); err != nil {
					return err
				}
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session exited")
				return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			if err != nil {
				return err
			}

		case <-ticker.C:
			diff := s.Sync()
			if !dirty && diff.Empty() {
				continue
			}
			dirty = false
			if err := write(diffFrame(diff)); err != nil {
				return err
			}
		}
	}
}
