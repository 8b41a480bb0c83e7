package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ExactFitConsumesBlock(t *testing.T) {
	la, chunks := newLayout(t, FirstFit, 32)
	splits := la.Stats().SplitCount

	ref, err := la.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, chunks[0], ref.Addr())
	assert.Empty(t, la.FreeBlocks())
	assert.Equal(t, splits, la.Stats().SplitCount)
}

func TestSplit_SmallRemainderIsNotSplit(t *testing.T) {
	// Block is 56 bytes; a 24-byte request needs 40, leaving 16: too small
	// for a header plus 8 bytes of payload.
	la, chunks := newLayout(t, FirstFit, 40)
	splits := la.Stats().SplitCount

	ref, err := la.Alloc(24)
	require.NoError(t, err)
	assert.Equal(t, chunks[0], ref.Addr())
	assert.Empty(t, la.FreeBlocks(), "small remainder must stay with the block")
	assert.Equal(t, splits, la.Stats().SplitCount)

	b, err := la.Bytes(ref)
	require.NoError(t, err)
	assert.Len(t, b, 40, "consumed block keeps its full payload")
	assertInvariants(t, la)
}

func TestSplit_MinimalRemainder(t *testing.T) {
	// Block is 56 bytes; a 16-byte request needs 32, leaving exactly 24.
	la, chunks := newLayout(t, FirstFit, 40)
	splits := la.Stats().SplitCount

	ref, err := la.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, chunks[0], ref.Addr())
	assert.Equal(t, splits+1, la.Stats().SplitCount)

	free := la.FreeBlocks()
	require.Len(t, free, 1)
	assert.Equal(t, ref.Addr()-headerSize+32, free[0].Addr)
	assert.Equal(t, uint64(24), free[0].Size)
	assert.Equal(t, uint64(8), la.Info().FreeSize)

	b, err := la.Bytes(ref)
	require.NoError(t, err)
	assert.Len(t, b, 16)
	assertInvariants(t, la)
}

func TestSplit_RemainderKeepsListPosition(t *testing.T) {
	la, chunks := newLayout(t, FirstFit, 64, 16)

	_, err := la.Alloc(8)
	require.NoError(t, err)

	free := la.FreeBlocks()
	require.Len(t, free, 2)
	assert.Equal(t, chunks[0]-headerSize+24, free[0].Addr, "remainder replaces the chosen block")
	assert.Equal(t, chunks[1]-headerSize, free[1].Addr)
	assertInvariants(t, la)
}
