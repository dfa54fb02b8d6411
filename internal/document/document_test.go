package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"blueprint", Blueprint},
		{"  Design ", Design},
		{"tasks.md", Tasks},
		{"VALIDATION.md", Validation},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Parse("readme")
	assert.True(t, errors.Is(err, ErrUnknown))
}

func TestAllIsOrderedAndDetached(t *testing.T) {
	names := All()
	assert.Equal(t, []Name{Blueprint, Requirements, Design, Tasks, Validation}, names)

	names[0] = "mutated"
	assert.Equal(t, Blueprint, All()[0])
}

func TestContextBlock(t *testing.T) {
	s := NewSet()
	assert.Empty(t, s.ContextBlock())

	s[Design] = "design body"
	s[Blueprint] = "blueprint body"

	want := "<<<blueprint.md>>>\nblueprint body\n<<</blueprint.md>>>\n\n" +
		"<<<design.md>>>\ndesign body\n<<</design.md>>>"
	assert.Equal(t, want, s.ContextBlock())
	assert.Equal(t, []Name{Blueprint, Design}, s.Generated())
}

func TestSetClone(t *testing.T) {
	s := NewSet()
	s[Tasks] = "one"
	c := s.Clone()
	c[Tasks] = "two"
	assert.Equal(t, "one", s[Tasks])
}
