package jsoncodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalMatchesStdlibShape(t *testing.T) {
	out, err := MarshalString(map[string]any{"b": 1, "a": "<x>"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1}`, out)
}

func TestUnmarshalIntoAny(t *testing.T) {
	var v any
	require.NoError(t, Unmarshal([]byte(`{"n":1.5,"list":[true,null]}`), &v))

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.5, m["n"])
	assert.Equal(t, []any{true, nil}, m["list"])
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`[1,2]`)))
	assert.False(t, Valid([]byte(`{"a":`)))
}
