// Package extract pulls delimited documents out of model responses and
// detects the approval-gate phrasing that ends a phase.
package extract

import (
	"fmt"
	"strings"

	"specarch/internal/document"
)

// Extraction is the result of scanning one response for a document.
type Extraction struct {
	Document document.Name
	// Content is the text between the markers, trimmed. Only meaningful when Found.
	Content string
	// Display is the response with the delimited span replaced by a notice.
	// Equal to the input when Found is false.
	Display string
	Found   bool
}

// Markers returns the start and end delimiters for name.
func Markers(name document.Name) (start, end string) {
	return fmt.Sprintf("<<<%s_START>>>", name), fmt.Sprintf("<<<%s_END>>>", name)
}

// Notice is the text shown in the conversation in place of an extracted document.
func Notice(name document.Name) string {
	return fmt.Sprintf("*The content for %s has been generated. You can view it in the documents panel.*", name.FileName())
}

// Document looks for the first start marker for name and the first end marker
// after it. Without both markers the text is returned unchanged.
func Document(text string, name document.Name) Extraction {
	out := Extraction{Document: name, Display: text}

	start, end := Markers(name)
	i := strings.Index(text, start)
	if i < 0 {
		return out
	}
	bodyStart := i + len(start)
	j := strings.Index(text[bodyStart:], end)
	if j < 0 {
		return out
	}
	bodyEnd := bodyStart + j

	out.Found = true
	out.Content = strings.TrimSpace(text[bodyStart:bodyEnd])
	out.Display = strings.TrimSpace(text[:i] + Notice(name) + text[bodyEnd+len(end):])
	return out
}
