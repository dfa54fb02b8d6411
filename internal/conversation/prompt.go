package conversation

import (
	"strings"

	"specarch/internal/document"
	"specarch/internal/phase"
)

// BuildPrompt composes a user turn: the current documents, the instruction
// for p, then the request itself, separated by blank lines.
func BuildPrompt(docs document.Set, p phase.Phase, text string) string {
	var parts []string
	if block := docs.ContextBlock(); block != "" {
		parts = append(parts, block)
	}
	if instr := phase.Instruction(p); instr != "" {
		parts = append(parts, instr)
	}
	parts = append(parts, `User request: "`+text+`"`)
	return strings.Join(parts, "\n\n")
}
