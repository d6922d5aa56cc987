package domain

// StreamEventKind tags a StreamEvent.
type StreamEventKind int

const (
	// EventResult carries one decoded content chunk in Text.
	EventResult StreamEventKind = iota
	// EventComplete marks normal termination (sentinel or end of stream).
	EventComplete
	// EventError marks failed termination; Err is set.
	EventError
)

func (k StreamEventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is a single event of a chat stream. Every stream ends with
// exactly one EventComplete or EventError.
type StreamEvent struct {
	Kind StreamEventKind
	Text string
	Err  error
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}
