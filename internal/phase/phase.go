// Package phase holds the static workflow table: the nine phases, their
// display titles, successors and output documents, plus the instruction text
// sent to the model for each phase.
package phase

import (
	"errors"
	"fmt"
	"strings"

	"specarch/internal/document"
)

// Phase is a named step of the specification workflow.
type Phase string

const (
	Initial      Phase = "INITIAL"
	Research     Phase = "RESEARCH"
	Blueprint    Phase = "BLUEPRINT"
	Requirements Phase = "REQUIREMENTS"
	Design       Phase = "DESIGN"
	Tasks        Phase = "TASKS"
	Validation   Phase = "VALIDATION"
	Complete     Phase = "COMPLETE"
	Execution    Phase = "EXECUTION"
)

// ErrUnknown is returned by Parse for names outside the table.
var ErrUnknown = errors.New("unknown phase")

// Info is one row of the phase table. Output is empty for phases that do not
// produce a document.
type Info struct {
	Title  string
	Next   Phase
	Output document.Name
}

var table = map[Phase]Info{
	Initial:      {Title: "Start", Next: Research},
	Research:     {Title: "Verifiable Research", Next: Blueprint},
	Blueprint:    {Title: "Architectural Blueprint", Next: Requirements, Output: document.Blueprint},
	Requirements: {Title: "Requirements Generation", Next: Design, Output: document.Requirements},
	Design:       {Title: "Detailed Design", Next: Tasks, Output: document.Design},
	Tasks:        {Title: "Task Decomposition", Next: Validation, Output: document.Tasks},
	Validation:   {Title: "Validation & Traceability", Next: Complete, Output: document.Validation},
	Complete:     {Title: "Complete", Next: Execution},
	Execution:    {Title: "Execution", Next: Execution},
}

var ordered = [...]Phase{Initial, Research, Blueprint, Requirements, Design, Tasks, Validation, Complete, Execution}

// All returns every phase in workflow order.
func All() []Phase {
	phases := make([]Phase, len(ordered))
	copy(phases, ordered[:])
	return phases
}

// Lookup returns the table row for p.
func Lookup(p Phase) (Info, bool) {
	info, ok := table[p]
	return info, ok
}

// Parse resolves a phase name case-insensitively.
func Parse(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return p, nil
}

func (p Phase) Valid() bool {
	_, ok := table[p]
	return ok
}

func (p Phase) String() string {
	return string(p)
}

// Title is the human-readable phase name. Unknown phases return their raw value.
func (p Phase) Title() string {
	if info, ok := table[p]; ok {
		return info.Title
	}
	return string(p)
}

// Next returns the successor phase. EXECUTION is its own successor.
func (p Phase) Next() Phase {
	return table[p].Next
}

// OutputDocument returns the document produced while p is active.
func (p Phase) OutputDocument() (document.Name, bool) {
	info := table[p]
	return info.Output, info.Output != ""
}

// Effective is the phase used to build a prompt: a fresh session is treated
// as already researching.
func (p Phase) Effective() Phase {
	if p == Initial {
		return Research
	}
	return p
}

// AutoAdvances reports whether an approval gate detected in p moves the
// workflow forward on its own. Leaving COMPLETE requires the explicit
// execute command.
func (p Phase) AutoAdvances() bool {
	switch p {
	case Complete, Execution:
		return false
	}
	return p.Valid()
}

// UsesWebSearch reports whether turns in p are grounded with web search.
func (p Phase) UsesWebSearch() bool {
	return p == Research
}
