package collections_test

import (
	"testing"

	"github.com/alkime/podbook/pkg/collections"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	t.Run("basic types", func(t *testing.T) {
		squared := collections.Apply([]int{1, 2, 3, 4}, func(i int) int {
			return i * i
		})
		require.Equal(t, []int{1, 4, 9, 16}, squared)
	})

	t.Run("structs", func(t *testing.T) {
		type word struct {
			Text  string
			Start float64
		}

		words := []word{{"Discover", 0}, {"the", 0.4}, {"secrets", 0.55}}
		texts := collections.Apply(words, func(w word) string {
			return w.Text
		})
		require.Equal(t, []string{"Discover", "the", "secrets"}, texts)
	})

	t.Run("variadic", func(t *testing.T) {
		lengths := collections.ApplyVariadic(func(s string) int { return len(s) }, "a", "bb", "ccc")
		require.Equal(t, []int{1, 2, 3}, lengths)
	})
}

func TestChunk(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		assert.Equal(t, [][]int{{1, 2}, {3, 4}}, collections.Chunk([]int{1, 2, 3, 4}, 2))
	})

	t.Run("remainder in last chunk", func(t *testing.T) {
		assert.Equal(t, [][]int{{1, 2, 3}, {4}}, collections.Chunk([]int{1, 2, 3, 4}, 3))
	})

	t.Run("empty and invalid size", func(t *testing.T) {
		assert.Nil(t, collections.Chunk([]int{}, 3))
		assert.Nil(t, collections.Chunk([]int{1}, 0))
	})

	t.Run("appending to a chunk does not clobber the next", func(t *testing.T) {
		chunks := collections.Chunk([]int{1, 2, 3, 4}, 2)
		_ = append(chunks[0], 99)
		assert.Equal(t, []int{3, 4}, chunks[1])
	})
}
