package blockstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/tinyfs/blockstore"
	dt "github.com/dargueta/tinyfs/testing"
)

// newFixture builds a blank, in-memory image exactly blockstore.ImageSize
// bytes long and hands it to blockstore.CreateFromStream, the way
// blockstore.Create would for a real file on disk. No closer is needed:
// the buffer has nothing external to release.
func newFixture(t *testing.T) *blockstore.Store {
	t.Helper()
	raw := make([]byte, blockstore.ImageSize)
	stream := dt.NewBlankImageStream(t, raw)

	store, err := blockstore.CreateFromStream(stream, nil)
	require.NoError(t, err)
	return store
}

func TestCreate_ReservesFreeMapBlocks(t *testing.T) {
	store := newFixture(t)

	for id := blockstore.FreeMapStartBlock; id < blockstore.TotalBlocks; id++ {
		assert.True(t, store.IsAllocated(blockstore.BlockID(id)), "free-map block %d must be reserved", id)
	}
	assert.False(t, store.IsAllocated(0))
	assert.Equal(t, blockstore.TotalBlocks-blockstore.FreeMapBlockCount, store.FreeBlockCount())
}

func TestAllocateSkipsReservedBlocks(t *testing.T) {
	store := newFixture(t)

	id, err := store.Allocate()
	require.NoError(t, err)
	assert.Equal(t, blockstore.BlockID(0), id)
	assert.True(t, store.IsAllocated(id))
}

func TestRequestRejectsDoubleAllocation(t *testing.T) {
	store := newFixture(t)

	require.NoError(t, store.Request(blockstore.BlockID(100)))
	assert.Error(t, store.Request(blockstore.BlockID(100)))
}

func TestReleaseFreesBlock(t *testing.T) {
	store := newFixture(t)

	id, err := store.Allocate()
	require.NoError(t, err)
	require.NoError(t, store.Release(id))
	assert.False(t, store.IsAllocated(id))
}

func TestReadWriteRoundTrip(t *testing.T) {
	store := newFixture(t)

	id, err := store.Allocate()
	require.NoError(t, err)

	src := make([]byte, blockstore.BlockSize)
	for i := range src {
		src[i] = byte(i % 256)
	}
	require.NoError(t, store.Write(id, src))

	dst := make([]byte, blockstore.BlockSize)
	require.NoError(t, store.Read(id, dst))
	assert.Equal(t, src, dst)
}

func TestReadWriteRejectWrongSizedBuffers(t *testing.T) {
	store := newFixture(t)
	assert.Error(t, store.Write(blockstore.BlockID(0), make([]byte, 10)))
	assert.Error(t, store.Read(blockstore.BlockID(0), make([]byte, 10)))
}

func TestOutOfRangeBlockIDsFail(t *testing.T) {
	store := newFixture(t)
	oob := blockstore.BlockID(blockstore.TotalBlocks + 1)
	assert.Error(t, store.Read(oob, make([]byte, blockstore.BlockSize)))
	assert.Error(t, store.Write(oob, make([]byte, blockstore.BlockSize)))
	assert.Error(t, store.Request(oob))
	assert.Error(t, store.Release(oob))
}

func TestAllocateExhaustion(t *testing.T) {
	store := newFixture(t)

	usable := blockstore.FreeMapStartBlock
	for i := 0; i < usable; i++ {
		_, err := store.Allocate()
		require.NoError(t, err)
	}

	_, err := store.Allocate()
	assert.Error(t, err)
}

func TestDestroyPersistsWritesAcrossReopen(t *testing.T) {
	raw := make([]byte, blockstore.ImageSize)
	stream := dt.NewBlankImageStream(t, raw)

	store, err := blockstore.CreateFromStream(stream, nil)
	require.NoError(t, err)

	id, err := store.Allocate()
	require.NoError(t, err)

	payload := make([]byte, blockstore.BlockSize)
	copy(payload, []byte("hello disk"))
	require.NoError(t, store.Write(id, payload))

	require.NoError(t, store.Destroy())

	reopened, err := blockstore.OpenFromStream(dt.NewBlankImageStream(t, raw), nil)
	require.NoError(t, err)

	dst := make([]byte, blockstore.BlockSize)
	require.NoError(t, reopened.Read(id, dst))
	assert.Equal(t, payload, dst)
	assert.True(t, reopened.IsAllocated(id))
}
