package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightsFor(t *testing.T) {
	t.Run("global weights", func(t *testing.T) {
		w := WeightsFor(ModeGlobal)
		assert.Equal(t, 0.45, w.Centrality)
		assert.Equal(t, 0.35, w.Relation)
		assert.Equal(t, 0.20, w.Overlap)
	})

	t.Run("local weights", func(t *testing.T) {
		w := WeightsFor(ModeLocal)
		assert.Equal(t, 0.35, w.Centrality)
		assert.Equal(t, 0.45, w.Relation)
		assert.Equal(t, 0.20, w.Overlap)
	})

	t.Run("drift weights", func(t *testing.T) {
		w := WeightsFor(ModeDrift)
		assert.Equal(t, 0.25, w.Centrality)
		assert.Equal(t, 0.25, w.Relation)
		assert.Equal(t, 0.50, w.Overlap)
	})

	t.Run("unknown mode falls back to global", func(t *testing.T) {
		w := WeightsFor("nonsense")
		assert.Equal(t, WeightsFor(ModeGlobal), w)
	})

	t.Run("weights sum to 1.0 for every mode", func(t *testing.T) {
		for _, mode := range []string{ModeGlobal, ModeLocal, ModeDrift} {
			w := WeightsFor(mode)
			sum := w.Centrality + w.Relation + w.Overlap
			assert.InDelta(t, 1.0, sum, 0.001, "mode %s", mode)
		}
	})
}

func TestResolveAutoMode(t *testing.T) {
	t.Run("short query resolves to global", func(t *testing.T) {
		assert.Equal(t, ModeGlobal, ResolveAutoMode("who are the founders"))
	})

	t.Run("empty query resolves to global", func(t *testing.T) {
		assert.Equal(t, ModeGlobal, ResolveAutoMode(""))
	})

	t.Run("long query resolves to local", func(t *testing.T) {
		assert.Equal(t, ModeLocal, ResolveAutoMode("what technologies does the platform team use for their backend services"))
	})

	t.Run("exactly four words resolves to global", func(t *testing.T) {
		assert.Equal(t, ModeGlobal, ResolveAutoMode("one two three four"))
	})

	t.Run("five words resolves to local", func(t *testing.T) {
		assert.Equal(t, ModeLocal, ResolveAutoMode("one two three four five"))
	})
}
