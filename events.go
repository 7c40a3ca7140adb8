package tideterm

import (
	"errors"
	"fmt"
)

// ErrExited is returned by Session.WriteInput once the child has exited.
var ErrExited = errors.New("tideterm: session exited")

// EventKind identifies a Session event.
type EventKind int

const (
	// EventOutput means new output was applied to the grid; call Sync.
	EventOutput EventKind = iota + 1
	// EventTitle carries a new window title in Event.Title.
	EventTitle
	// EventBell is a BEL from the child.
	EventBell
	// EventExit is delivered once when the child is gone. Event.Err is set
	// if reading failed rather than reaching end of file.
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventTitle:
		return "title"
	case EventBell:
		return "bell"
	case EventExit:
		return "exit"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a notification from a running Session.
type Event struct {
	Kind     EventKind
	Title    string
	Err      error
	ExitCode int
}
