package phase

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specarch/internal/document"
)

func TestTableCoversEveryPhase(t *testing.T) {
	for _, p := range All() {
		info, ok := Lookup(p)
		require.True(t, ok, "missing row for %s", p)
		assert.NotEmpty(t, info.Title, p)
		assert.True(t, info.Next.Valid(), "next of %s", p)
	}
	assert.Len(t, table, len(All()))
}

func TestOutputDocuments(t *testing.T) {
	want := map[Phase]document.Name{
		Blueprint:    document.Blueprint,
		Requirements: document.Requirements,
		Design:       document.Design,
		Tasks:        document.Tasks,
		Validation:   document.Validation,
	}
	for _, p := range All() {
		name, ok := p.OutputDocument()
		if expected, has := want[p]; has {
			assert.True(t, ok, p)
			assert.Equal(t, expected, name)
		} else {
			assert.False(t, ok, p)
			assert.Empty(t, name)
		}
	}
}

func TestResearchReachesCompleteInSixSteps(t *testing.T) {
	seen := map[Phase]bool{}
	p := Research
	steps := 0
	for p != Complete {
		require.False(t, seen[p], "revisited %s", p)
		seen[p] = true
		p = p.Next()
		steps++
		require.LessOrEqual(t, steps, 6)
	}
	assert.Equal(t, 6, steps)
}

func TestExecutionIsTerminal(t *testing.T) {
	assert.Equal(t, Execution, Execution.Next())
	assert.Equal(t, Execution, Complete.Next())
	assert.Equal(t, Research, Initial.Next())
}

func TestEffective(t *testing.T) {
	assert.Equal(t, Research, Initial.Effective())
	assert.Equal(t, Design, Design.Effective())
}

func TestAutoAdvancesAndWebSearch(t *testing.T) {
	for _, p := range All() {
		switch p {
		case Complete, Execution:
			assert.False(t, p.AutoAdvances(), p)
		default:
			assert.True(t, p.AutoAdvances(), p)
		}
		assert.Equal(t, p == Research, p.UsesWebSearch(), p)
	}
	assert.False(t, Phase("BOGUS").AutoAdvances())
}

func TestParse(t *testing.T) {
	p, err := Parse(" blueprint ")
	require.NoError(t, err)
	assert.Equal(t, Blueprint, p)

	_, err = Parse("deploy")
	assert.True(t, errors.Is(err, ErrUnknown))
}

func TestInstructionsCarryDelimitersAndGates(t *testing.T) {
	for _, p := range All() {
		name, ok := p.OutputDocument()
		if !ok {
			continue
		}
		text := Instruction(p)
		assert.Contains(t, text, "<<<"+string(name)+"_START>>>", p)
		assert.Contains(t, text, "<<<"+string(name)+"_END>>>", p)
		assert.Contains(t, strings.ToLower(text), "approval gate", p)
	}
	assert.Contains(t, Instruction(Research), "Proceed to define the architectural blueprint?")
	assert.Empty(t, Instruction(Initial))
}
