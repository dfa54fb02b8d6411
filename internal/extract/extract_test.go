package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"specarch/internal/document"
)

func TestDocument(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		doc         document.Name
		wantFound   bool
		wantContent string
		wantDisplay string
	}{
		{
			name:        "delimited body",
			text:        "Intro\n<<<blueprint_START>>>\n# Blueprint\nbody\n<<<blueprint_END>>>\nArchitectural blueprint defined. Proceed to generate requirements?",
			doc:         document.Blueprint,
			wantFound:   true,
			wantContent: "# Blueprint\nbody",
			wantDisplay: "Intro\n" + Notice(document.Blueprint) + "\nArchitectural blueprint defined. Proceed to generate requirements?",
		},
		{
			name:        "no markers",
			text:        "  just talk  ",
			doc:         document.Design,
			wantDisplay: "  just talk  ",
		},
		{
			name:        "start without end",
			text:        "<<<tasks_START>>> partial",
			doc:         document.Tasks,
			wantDisplay: "<<<tasks_START>>> partial",
		},
		{
			name:        "end before start is ignored",
			text:        "<<<tasks_END>>> x <<<tasks_START>>> y",
			doc:         document.Tasks,
			wantDisplay: "<<<tasks_END>>> x <<<tasks_START>>> y",
		},
		{
			name:        "other document markers",
			text:        "<<<design_START>>>d<<<design_END>>>",
			doc:         document.Requirements,
			wantDisplay: "<<<design_START>>>d<<<design_END>>>",
		},
		{
			name:        "empty body",
			text:        "<<<validation_START>>>   <<<validation_END>>>",
			doc:         document.Validation,
			wantFound:   true,
			wantContent: "",
			wantDisplay: Notice(document.Validation),
		},
		{
			name:        "first pair wins",
			text:        "<<<design_START>>>one<<<design_END>>> <<<design_START>>>two<<<design_END>>>",
			doc:         document.Design,
			wantFound:   true,
			wantContent: "one",
			wantDisplay: Notice(document.Design) + " <<<design_START>>>two<<<design_END>>>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Document(tt.text, tt.doc)
			assert.Equal(t, tt.doc, got.Document)
			assert.Equal(t, tt.wantFound, got.Found)
			assert.Equal(t, tt.wantContent, got.Content)
			assert.Equal(t, tt.wantDisplay, got.Display)
		})
	}
}

func TestNotice(t *testing.T) {
	assert.Equal(t,
		"*The content for requirements.md has been generated. You can view it in the documents panel.*",
		Notice(document.Requirements))
}

func TestDetectApproval(t *testing.T) {
	tests := []struct {
		text   string
		phrase string
		ok     bool
	}{
		{"Requirements documented. Proceed to detailed design?", "proceed to", true},
		{"Do You Approve this plan?", "do you approve", true},
		{"The plan is validated.", "plan is validated", true},
		{"Type 'execute' to begin implementation.", "to begin implementation", true},
		{"The specification is ready", "specification is ready", true},
		{"Still thinking about the design.", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		phrase, ok := DetectApproval(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.phrase, phrase, tt.text)
	}
}

func TestApprovalPhrasesDetached(t *testing.T) {
	p := ApprovalPhrases()
	p[0] = "changed"
	assert.Equal(t, "do you approve", ApprovalPhrases()[0])
}
