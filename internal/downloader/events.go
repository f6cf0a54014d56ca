package downloader

import "fmt"

type EventKind int

const (
	EventPercent EventKind = iota
	EventBytes
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventPercent:
		return "percent"
	case EventBytes:
		return "bytes"
	case EventComplete:
		return "complete"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one progress notification. Percent is meaningful for EventPercent,
// Written for EventBytes; both are filled in where known. Total is -1 when the
// source did not advertise a size.
type Event struct {
	Kind    EventKind
	Percent int
	Written int64
	Total   int64
}

func (e Event) String() string {
	switch e.Kind {
	case EventPercent:
		return fmt.Sprintf("%d%%", e.Percent)
	case EventBytes:
		return fmt.Sprintf("%d bytes", e.Written)
	default:
		return "download complete"
	}
}

// ProgressFunc receives events synchronously, in order, from the goroutine
// running the download.
type ProgressFunc func(Event)
