package conversation

import (
	"specarch/internal/document"
	"specarch/internal/phase"
)

// EventKind identifies what changed.
type EventKind string

const (
	EventMessageAppended       EventKind = "message_appended"
	EventStreamDelta           EventKind = "stream_delta"
	EventMessageFinalized      EventKind = "message_finalized"
	EventPhaseChanged          EventKind = "phase_changed"
	EventDocumentChanged       EventKind = "document_changed"
	EventEditingToggled        EventKind = "editing_toggled"
	EventActiveDocumentChanged EventKind = "active_document_changed"
	EventThinkingModeChanged   EventKind = "thinking_mode_changed"
	EventAdvanceScheduled      EventKind = "advance_scheduled"
	EventError                 EventKind = "error"
)

// Event describes one state change. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	// Index is the message position for message and delta events.
	Index    int
	Message  Message
	Delta    string
	Phase    phase.Phase
	Previous phase.Phase
	Document document.Name
	Content  string
	Enabled  bool
	Err      error
}

// Observer receives events in the order they were applied. It is called
// outside the state lock but must not call mutating Machine methods
// synchronously.
type Observer func(Event)
