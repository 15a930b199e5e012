package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/tinyfs/layout"
)

func TestInodeRoundTrip(t *testing.T) {
	original := layout.RawInode{
		FileSize:   4096,
		UserID:     1000,
		GroupID:    1000,
		FileMode:   0644,
		LinkCount:  1,
		ChangeTime: 1_700_000_000,
	}
	original.DirectBlocks[0] = 42
	original.IndirectBlock = 99

	buf := layout.EncodeInode(&original)
	require.Len(t, buf, layout.InodeSize)

	decoded := layout.DecodeInode(buf)
	assert.Equal(t, original, decoded)
}

func TestInodeIsAllocated(t *testing.T) {
	free := layout.RawInode{}
	assert.False(t, free.IsAllocated())

	used := layout.RawInode{LinkCount: 1}
	assert.True(t, used.IsAllocated())
}

func TestDirEntryNameRoundTrip(t *testing.T) {
	var entry layout.RawDirEntry
	entry.SetName("notes.txt")
	entry.InodeNumber = 7
	entry.FileType = layout.FileTypeRegular

	assert.Equal(t, "notes.txt", entry.NameString())
	assert.False(t, entry.IsFree())
}

func TestDirEntrySetNameTooLongPanics(t *testing.T) {
	var entry layout.RawDirEntry
	tooLong := make([]byte, layout.DirNameMaxLength+1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	assert.Panics(t, func() {
		entry.SetName(string(tooLong))
	})
}

func TestDirectoryBlockRoundTrip(t *testing.T) {
	var dir layout.DirectoryBlock
	dir.Entries[0].SetName("a")
	dir.Entries[0].InodeNumber = 1
	dir.Entries[0].FileType = layout.FileTypeRegular

	dir.Entries[3].SetName("subdir")
	dir.Entries[3].InodeNumber = 2
	dir.Entries[3].FileType = layout.FileTypeDirectory

	buf := layout.EncodeDirectoryBlock(&dir)
	require.Len(t, buf, layout.BlockSize)

	decoded := layout.DecodeDirectoryBlock(buf)
	assert.Equal(t, "a", decoded.Entries[0].NameString())
	assert.Equal(t, uint16(1), decoded.Entries[0].InodeNumber)
	assert.True(t, decoded.Entries[1].IsFree())
	assert.Equal(t, "subdir", decoded.Entries[3].NameString())
	assert.Equal(t, layout.FileTypeDirectory, decoded.Entries[3].FileType)
}

func TestIndexBlockRoundTrip(t *testing.T) {
	var ptrs [layout.PointersPerIndexBlock]uint16
	ptrs[0] = 10
	ptrs[255] = 20

	buf := layout.EncodeIndexBlock(&ptrs)
	require.Len(t, buf, layout.BlockSize)

	decoded := layout.DecodeIndexBlock(buf)
	assert.Equal(t, ptrs, decoded)
}

func TestSuperblockRoundTrip(t *testing.T) {
	sb := layout.RawSuperblock{
		TotalBlocks:    65536,
		FreeBlockCount: 65000,
		BlockSize:      layout.BlockSize,
	}
	sb.InodeBitmap[0] = 0xFF

	buf := layout.EncodeSuperblock(&sb)
	require.Len(t, buf, layout.BlockSize)

	decoded := layout.DecodeSuperblock(buf)
	assert.Equal(t, sb, decoded)
}

func TestGeometryConstants(t *testing.T) {
	assert.Equal(t, 67, layout.DirEntrySize)
	assert.Equal(t, 7, layout.DirEntriesPerBlock)
	assert.Equal(t, 8, layout.InodesPerBlock)
	assert.Equal(t, 32, layout.InodeTableBlockCount)
}
