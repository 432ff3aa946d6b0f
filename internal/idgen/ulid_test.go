package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateIsMonotonic(t *testing.T) {
	g := NewULIDGenerator()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	prev := ""
	for i := 0; i < 1000; i++ {
		id, at, err := g.Generate()
		require.NoError(t, err)
		require.NoError(t, Validate(id))
		require.True(t, at.Equal(fixed))
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate("short"))
	require.Error(t, Validate("!!!!!!!!!!!!!!!!!!!!!!!!!!"))
	require.NoError(t, Validate("01HZY3J6R7Q0X9V5Z0ABCDEFGH"))
}
