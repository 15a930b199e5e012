package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/tinyfs/bitmap"
)

func TestNew_AllClear(t *testing.T) {
	b := bitmap.New(16)
	for i := 0; i < 16; i++ {
		assert.False(t, b.Test(i))
	}
	assert.Equal(t, 0, b.Popcount())
}

func TestSetResetTest(t *testing.T) {
	b := bitmap.New(8)
	b.Set(3)
	assert.True(t, b.Test(3))
	assert.Equal(t, 1, b.Popcount())

	b.Reset(3)
	assert.False(t, b.Test(3))
	assert.Equal(t, 0, b.Popcount())
}

func TestFirstFreeZero(t *testing.T) {
	b := bitmap.New(4)
	b.Set(0)
	b.Set(1)

	idx, ok := b.FirstFreeZero()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	b.Set(2)
	b.Set(3)
	_, ok = b.FirstFreeZero()
	assert.False(t, ok)
}

func TestAllocateFirstFree_ExhaustsWithError(t *testing.T) {
	b := bitmap.New(2)

	first, err := b.AllocateFirstFree()
	require.NoError(t, err)
	assert.Equal(t, 0, first)

	second, err := b.AllocateFirstFree()
	require.NoError(t, err)
	assert.Equal(t, 1, second)

	_, err = b.AllocateFirstFree()
	require.Error(t, err)
}

func TestOverlay_SharesStorageWithCaller(t *testing.T) {
	buf := make([]byte, 4)
	overlay := bitmap.Overlay(32, buf)

	overlay.Set(0)
	overlay.Set(17)

	assert.NotZero(t, buf[0], "setting a bit must mutate the caller's buffer")
	assert.Equal(t, 2, overlay.Popcount())

	reopened := bitmap.Overlay(32, buf)
	assert.True(t, reopened.Test(0))
	assert.True(t, reopened.Test(17))
	assert.False(t, reopened.Test(1))
}

func TestOverlay_TooSmallBufferPanics(t *testing.T) {
	assert.Panics(t, func() {
		bitmap.Overlay(64, make([]byte, 2))
	})
}
