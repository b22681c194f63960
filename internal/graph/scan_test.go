package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanOutputRefs(t *testing.T) {
	t.Run("finds and dedupes references in order", func(t *testing.T) {
		raw := `use outputs.research then outputs.draft then outputs.research again`
		assert.Equal(t, []string{"research", "draft"}, scanOutputRefs(raw))
	})

	t.Run("tolerates malformed template text", func(t *testing.T) {
		raw := `{{ outputs.research | trunc } outputs.`
		assert.Equal(t, []string{"research"}, scanOutputRefs(raw))
	})

	t.Run("no matches on unrelated text", func(t *testing.T) {
		assert.Nil(t, scanOutputRefs("plain instructions, no references"))
	})
}

func TestScanInputRefs(t *testing.T) {
	t.Run("finds input references", func(t *testing.T) {
		raw := `research input.topic to depth input.depth`
		assert.Equal(t, []string{"topic", "depth"}, scanInputRefs(raw))
	})

	t.Run("does not match inside other identifiers", func(t *testing.T) {
		assert.Nil(t, scanInputRefs("raw_input.topic and outputs.input"))
	})
}
