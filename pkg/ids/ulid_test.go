package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStreamIDIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 100; i++ {
		id := NewStreamID()
		require.Len(t, id, 26)
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)

		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}

		assert.Greater(t, id, prev)
		prev = id
	}
}
