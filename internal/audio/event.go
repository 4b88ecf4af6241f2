package audio

import "fmt"

type EventKind int

const (
	// EventIdle means the resource finished or was stopped.
	EventIdle EventKind = iota
	// EventError means the resource failed mid-playback.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventIdle:
		return "idle"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a terminal player event for one resource.
type Event struct {
	Kind     EventKind
	Resource *Resource
	Err      error
}
