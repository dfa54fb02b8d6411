package server

import (
	"specarch/internal/conversation"
	"specarch/internal/document"
	"specarch/internal/transport"
)

// Client command types.
const (
	cmdSend              = "send"
	cmdSetActiveDocument = "set_active_document"
	cmdSetThinkingMode   = "set_thinking_mode"
	cmdToggleEditing     = "toggle_editing"
	cmdUpdateDocument    = "update_document"
	cmdAbort             = "abort"
	cmdState             = "state"
)

// Server frame types.
const (
	frameEvent = "event"
	frameState = "state"
	frameError = "error"
)

type command struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Document string `json:"document,omitempty"`
	Content  string `json:"content,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
}

type frame struct {
	Type  string        `json:"type"`
	Conn  string        `json:"conn,omitempty"`
	Event *eventPayload `json:"event,omitempty"`
	State *statePayload `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

type messagePayload struct {
	Role    string             `json:"role"`
	Content string             `json:"content"`
	Sources []transport.Source `json:"sources,omitempty"`
	Error   bool               `json:"error,omitempty"`
}

type statePayload struct {
	Phase          string            `json:"phase"`
	PhaseTitle     string            `json:"phase_title"`
	Messages       []messagePayload  `json:"messages"`
	Documents      map[string]string `json:"documents"`
	Editing        map[string]bool   `json:"editing"`
	ActiveDocument string            `json:"active_document"`
	ThinkingMode   bool              `json:"thinking_mode"`
	Loading        bool              `json:"loading"`
	LastError      string            `json:"last_error,omitempty"`
}

type eventPayload struct {
	Kind     string          `json:"kind"`
	Index    int             `json:"index"`
	Message  *messagePayload `json:"message,omitempty"`
	Delta    string          `json:"delta,omitempty"`
	Phase    string          `json:"phase,omitempty"`
	Previous string          `json:"previous,omitempty"`
	Document string          `json:"document,omitempty"`
	Content  string          `json:"content,omitempty"`
	Enabled  bool            `json:"enabled"`
	Error    string          `json:"error,omitempty"`
}

func toMessage(m conversation.Message) messagePayload {
	return messagePayload{
		Role:    string(m.Role),
		Content: m.Content,
		Sources: m.Sources,
		Error:   m.Error,
	}
}

func toState(s conversation.State) *statePayload {
	p := &statePayload{
		Phase:          s.Phase.String(),
		PhaseTitle:     s.Phase.Title(),
		Messages:       make([]messagePayload, 0, len(s.Messages)),
		Documents:      make(map[string]string, len(s.Documents)),
		Editing:        make(map[string]bool),
		ActiveDocument: s.ActiveDocument.String(),
		ThinkingMode:   s.ThinkingMode,
		Loading:        s.Loading,
	}
	for _, m := range s.Messages {
		p.Messages = append(p.Messages, toMessage(m))
	}
	for _, name := range document.All() {
		p.Documents[name.String()] = s.Documents[name]
		p.Editing[name.String()] = s.Editing[name]
	}
	if s.LastError != nil {
		p.LastError = s.LastError.Error()
	}
	return p
}

func toEvent(ev conversation.Event) *eventPayload {
	p := &eventPayload{
		Kind:     string(ev.Kind),
		Index:    ev.Index,
		Delta:    ev.Delta,
		Phase:    ev.Phase.String(),
		Previous: ev.Previous.String(),
		Document: ev.Document.String(),
		Content:  ev.Content,
		Enabled:  ev.Enabled,
	}
	switch ev.Kind {
	case conversation.EventMessageAppended, conversation.EventMessageFinalized:
		m := toMessage(ev.Message)
		p.Message = &m
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}
