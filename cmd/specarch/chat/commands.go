package chat

import (
	"errors"
	"fmt"
	"strings"

	"specarch/internal/document"
)

type commandKind int

const (
	cmdNone commandKind = iota // plain text for the model
	cmdDoc
	cmdDocs
	cmdThink
	cmdEdit
	cmdAbort
	cmdHelp
	cmdUsage
	cmdQuit
)

type command struct {
	kind    commandKind
	doc     document.Name
	enabled bool
	text    string
}

var errUsage = errors.New("usage")

const helpText = `Commands:
  /doc <name>     show a document (blueprint, requirements, design, tasks, validation)
  /docs           toggle the documents panel
  /think on|off   toggle thinking mode
  /edit [name]    edit a document (ctrl+s saves, esc cancels)
  /abort          stop the streaming response (also ctrl+x)
  /usage          show token usage per phase
  /help           show this help
  /quit           exit

Type 'execute' once the specification is complete to finalize it.`

// parseCommand classifies one line of input. Anything not starting with "/"
// is sent to the model unchanged.
func parseCommand(input string) (command, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdNone, text: input}, nil
	}

	fields := strings.Fields(trimmed)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/doc":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: /doc <name>", errUsage)
		}
		doc, err := document.Parse(args[0])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdDoc, doc: doc}, nil
	case "/docs":
		return command{kind: cmdDocs}, nil
	case "/think":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: /think on|off", errUsage)
		}
		switch strings.ToLower(args[0]) {
		case "on":
			return command{kind: cmdThink, enabled: true}, nil
		case "off":
			return command{kind: cmdThink, enabled: false}, nil
		}
		return command{}, fmt.Errorf("%w: /think on|off", errUsage)
	case "/edit":
		if len(args) == 0 {
			return command{kind: cmdEdit}, nil
		}
		doc, err := document.Parse(args[0])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdEdit, doc: doc}, nil
	case "/abort", "/stop":
		return command{kind: cmdAbort}, nil
	case "/usage":
		return command{kind: cmdUsage}, nil
	case "/help", "/?":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %s (try /help)", name)
}
