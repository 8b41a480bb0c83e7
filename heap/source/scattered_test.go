package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScattered_IncrementsNeverTouch(t *testing.T) {
	s := NewScattered(0)

	prev, err := s.Grow(4096)
	require.NoError(t, err)
	for range 8 {
		inc, err := s.Grow(4096)
		require.NoError(t, err)
		assert.Greater(t, inc.Base, prev.End(), "increments must leave a gap")
		assert.Zero(t, inc.Base%8, "base must stay 8-byte aligned")
		assert.Equal(t, len(inc.Mem), cap(inc.Mem), "capacity must not reach past the increment")
		prev = inc
	}
	assert.Equal(t, 9*4096, s.Used())
}

func TestScattered_Limit(t *testing.T) {
	s := NewScattered(8192)

	_, err := s.Grow(4096)
	require.NoError(t, err)
	_, err = s.Grow(4096)
	require.NoError(t, err)

	_, err = s.Grow(8)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 8192, s.Used())
}

func TestScattered_Closed(t *testing.T) {
	s := NewScattered(0)
	require.NoError(t, s.Close())

	_, err := s.Grow(8)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScattered_ZeroValueUsable(t *testing.T) {
	var s Scattered
	inc, err := s.Grow(64)
	require.NoError(t, err)
	assert.Equal(t, DefaultBase, inc.Base)
}

func TestFunc_Adapter(t *testing.T) {
	calls := 0
	var src Source = Func(func(n int) (Increment, error) {
		calls++
		return Increment{Base: 0x2000, Mem: make([]byte, n)}, nil
	})

	inc, err := src.Grow(32)
	require.NoError(t, err)
	assert.Equal(t, Addr(0x2000), inc.Base)
	assert.Equal(t, Addr(0x2020), inc.End())
	assert.Equal(t, 1, calls)
	assert.NoError(t, src.Close())
}
