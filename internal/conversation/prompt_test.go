package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"specarch/internal/document"
	"specarch/internal/phase"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("no documents", func(t *testing.T) {
		got := BuildPrompt(document.NewSet(), phase.Research, "Build a todo app")
		want := phase.Instruction(phase.Research) + "\n\n" + `User request: "Build a todo app"`
		assert.Equal(t, want, got)
	})

	t.Run("with documents", func(t *testing.T) {
		docs := document.NewSet()
		docs[document.Blueprint] = "bp"
		got := BuildPrompt(docs, phase.Requirements, `say "hi"`)

		assert.True(t, strings.HasPrefix(got, "<<<blueprint.md>>>\nbp\n<<</blueprint.md>>>\n\n"))
		assert.Contains(t, got, phase.Instruction(phase.Requirements))
		assert.True(t, strings.HasSuffix(got, "\n\n"+`User request: "say "hi""`))
	})

	t.Run("empty instruction", func(t *testing.T) {
		assert.Equal(t, `User request: "x"`, BuildPrompt(document.NewSet(), phase.Initial, "x"))
	})
}
