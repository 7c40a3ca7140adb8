package pty

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func openShell(t *testing.T, script string) *PTY {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	p, err := Open(context.Background(), Options{
		Rows:    24,
		Cols:    80,
		Command: "/bin/sh",
		Args:    []string{"-c", script},
		Dir:     os.TempDir(),
	})
	if err != nil {
		if _, statErr := os.Stat("/dev/ptmx"); statErr != nil {
			t.Skip("no pty device available")
		}
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func readAll(t *testing.T, p *PTY) []byte {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := p.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			return out.Bytes()
		}
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
	}
	t.Fatal("timed out waiting for EOF")
	return nil
}

func TestOpenReadsOutputUntilEOF(t *testing.T) {
	p := openShell(t, "printf hello")

	out := readAll(t, p)
	if !bytes.Contains(out, []byte("hello")) {
		t.Errorf("expected output to contain hello, got %q", out)
	}
	if err := p.Wait(); err != nil {
		t.Errorf("expected clean exit, got %v", err)
	}
	if code := p.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestOpenSetsTerminalEnvironment(t *testing.T) {
	p := openShell(t, `printf "%s|%s|%s" "$TERM" "$COLORTERM" "$TERM_PROGRAM"`)

	out := string(readAll(t, p))
	if !strings.Contains(out, "xterm-256color|truecolor|tideterm") {
		t.Errorf("expected terminal variables in output, got %q", out)
	}
}

func TestOpenSpawnFailed(t *testing.T) {
	_, err := Open(context.Background(), Options{Rows: 24, Cols: 80, Command: "/nonexistent/tideterm-shell"})
	if !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("expected ErrSpawnFailed, got %v", err)
	}
}

func TestOpenCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, Options{Rows: 24, Cols: 80, Command: "/bin/sh"})
	if !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("expected ErrSpawnFailed, got %v", err)
	}
}

func TestOpenInvalidSize(t *testing.T) {
	_, err := Open(context.Background(), Options{Rows: 0, Cols: 80, Command: "/bin/sh"})
	if !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("expected ErrSpawnFailed, got %v", err)
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	p := openShell(t, "sleep 5")

	if err := p.Resize(24, 80); err != nil {
		t.Errorf("expected same-size resize to succeed, got %v", err)
	}
	if err := p.Resize(40, 120); err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	rows, cols := p.Size()
	if rows != 40 || cols != 120 {
		t.Errorf("expected 40x120, got %dx%d", rows, cols)
	}
}

func TestCloseTerminatesChild(t *testing.T) {
	p := openShell(t, "sleep 30")

	start := time.Now()
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-p.Exited():
	case <-time.After(3 * time.Second):
		t.Fatal("child still running after Close")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected Close to finish quickly, took %v", elapsed)
	}

	if _, err := p.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if err := p.Resize(10, 10); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Resize after Close, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
}

func TestReadAfterCloseIsEOF(t *testing.T) {
	p := openShell(t, "sleep 30")
	_ = p.Close()

	_, err := p.Read(make([]byte, 16))
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestBuildEnv(t *testing.T) {
	base := []string{"HOME=/home/me", "TERM=dumb", "COLORTERM=", "PATH=/usr/bin"}

	env := BuildEnv(base, true)

	want := map[string]string{
		"HOME":         "/home/me",
		"PATH":         "/usr/bin",
		"TERM":         "xterm-256color",
		"COLORTERM":    "truecolor",
		"COLORFGBG":    "15;0",
		"TERM_PROGRAM": "tideterm",
	}
	got := map[string]string{}
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		if _, dup := got[name]; dup {
			t.Errorf("expected %s once, found it twice", name)
		}
		got[name] = value
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("expected %s=%q, got %q", name, value, got[name])
		}
	}

	light := BuildEnv(nil, false)
	if !containsString(light, "COLORFGBG=0;15") {
		t.Errorf("expected light COLORFGBG, got %v", light)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestDefaultShell(t *testing.T) {
	t.Setenv("SHELL", "/nonexistent/shell")
	shell := DefaultShell()
	if shell == "/nonexistent/shell" {
		t.Errorf("expected a fallback shell, got %q", shell)
	}
	if !strings.HasPrefix(shell, "/bin/") {
		t.Errorf("expected a /bin shell, got %q", shell)
	}
}
