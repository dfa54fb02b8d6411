package conversation

import (
	"specarch/internal/document"
	"specarch/internal/phase"
	"specarch/internal/transport"
)

// Role is the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

const (
	// WelcomeMessage opens every conversation.
	WelcomeMessage = "Welcome! Describe the application or system you want to build. The first phase of our process will use Google Search to research up-to-date technologies and patterns for your project. For complex projects, ensure 'Thinking Mode' is enabled for best results."

	completeMessage  = "All documents generated and validated. The specification is ready.\n\nPlease type `execute` to finalize the process."
	executionMessage = "Execution command received. The specification process is finalized. The generated documents are ready for the development team."

	// ExecuteCommand finalizes the workflow once it reaches COMPLETE.
	ExecuteCommand = "execute"
)

// Message is one entry of the conversation log.
type Message struct {
	Role    Role
	Content string
	// Sources is only set on model messages produced during research.
	Sources []transport.Source
	// Error marks an inline transport failure notice.
	Error bool
}

// State is a snapshot of the conversation.
type State struct {
	Phase          phase.Phase
	Messages       []Message
	Documents      document.Set
	Editing        document.Flags
	ActiveDocument document.Name
	ThinkingMode   bool
	// Loading is true while a placeholder model message is being streamed.
	Loading   bool
	LastError error
}

func newState() State {
	return State{
		Phase:          phase.Initial,
		Messages:       []Message{{Role: RoleModel, Content: WelcomeMessage}},
		Documents:      document.NewSet(),
		Editing:        document.Flags{},
		ActiveDocument: document.Blueprint,
		ThinkingMode:   true,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.clone()
	}
	c.Documents = s.Documents.Clone()
	c.Editing = s.Editing.Clone()
	return c
}

// LastMessage returns the newest log entry.
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func (m Message) clone() Message {
	if m.Sources != nil {
		m.Sources = append([]transport.Source(nil), m.Sources...)
	}
	return m
}
