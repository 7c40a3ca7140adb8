// Command tideterm hosts terminal sessions.
//
//	tideterm run [--config file] [--shell cmd [args...]] [--log-file path] [--debug]
//	tideterm serve [--config file] [--addr host:port] [--debug]
//	tideterm snapshot [--rows R] [--cols C] [--format text|json|styled-json|png] [file]
//
// run draws the session in the current terminal. serve attaches sessions to
// websocket clients at /ws. snapshot replays a recorded byte stream and
// prints the resulting screen.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const usage = `usage: tideterm <command> [flags]

commands:
  run       run a shell in this terminal
  serve     serve sessions over websocket
  snapshot  render a recorded byte stream
`

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "tideterm: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		return runCommand(rest)
	case "serve":
		return serveCommand(rest)
	case "snapshot":
		return snapshotCommand(rest, os.Stdin, os.Stdout)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
