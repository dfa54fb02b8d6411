// Package document defines the five specification documents produced by the
// workflow and the in-memory set that holds their markdown content.
package document

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies one of the five document slots.
type Name string

const (
	Blueprint    Name = "blueprint"
	Requirements Name = "requirements"
	Design       Name = "design"
	Tasks        Name = "tasks"
	Validation   Name = "validation"
)

// ErrUnknown is returned for names outside the five document slots.
var ErrUnknown = errors.New("unknown document")

var ordered = [...]Name{Blueprint, Requirements, Design, Tasks, Validation}

// All returns the document names in workflow order.
func All() []Name {
	names := make([]Name, len(ordered))
	copy(names, ordered[:])
	return names
}

// Parse resolves a user-supplied name such as "Design" or "tasks.md".
func Parse(s string) (Name, error) {
	n := Name(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".md"))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return n, nil
}

// Valid reports whether n is one of the five document slots.
func (n Name) Valid() bool {
	for _, o := range ordered {
		if n == o {
			return true
		}
	}
	return false
}

// FileName is the markdown file name the document is presented under.
func (n Name) FileName() string {
	return string(n) + ".md"
}

func (n Name) String() string {
	return string(n)
}

// Set maps each document to its markdown content. An empty string means the
// document has not been generated yet.
type Set map[Name]string

// NewSet returns a set with every slot present and empty.
func NewSet() Set {
	s := make(Set, len(ordered))
	for _, n := range ordered {
		s[n] = ""
	}
	return s
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Generated lists the non-empty documents in workflow order.
func (s Set) Generated() []Name {
	var names []Name
	for _, n := range ordered {
		if s[n] != "" {
			names = append(names, n)
		}
	}
	return names
}

// ContextBlock renders every non-empty document wrapped in file markers so the
// model can see the current state of the specification. Returns "" when no
// document has content.
func (s Set) ContextBlock() string {
	var blocks []string
	for _, n := range s.Generated() {
		blocks = append(blocks, fmt.Sprintf("<<<%s>>>\n%s\n<<</%s>>>", n.FileName(), s[n], n.FileName()))
	}
	return strings.Join(blocks, "\n\n")
}

// Flags holds a boolean per document, used for edit mode.
type Flags map[Name]bool

// Clone returns an independent copy of f.
func (f Flags) Clone() Flags {
	c := make(Flags, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}
