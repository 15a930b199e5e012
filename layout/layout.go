// Package layout defines the byte-exact on-disk representation of the
// superblock (block 0), inode table entries (blocks 1-32), and directory
// blocks, along with Encode/Decode pairs for each. All multi-byte fields use
// the host's native byte order, matching spec.md §6 ("the image is
// therefore not portable across endian-differing hosts").
package layout

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

const (
	// BlockSize is the fixed size of one block, in bytes.
	BlockSize = 512

	// InodeSize is the on-disk size of one inode record.
	InodeSize = 64

	// InodesPerBlock is how many inode records share one 512-byte block.
	InodesPerBlock = BlockSize / InodeSize

	// TotalInodes is the number of inode slots the filesystem has. Inode 0 is
	// reserved for the root directory.
	TotalInodes = 256

	// InodeTableStartBlock is the first block of the inode table.
	InodeTableStartBlock = 1

	// InodeTableBlockCount is how many blocks the inode table occupies.
	InodeTableBlockCount = TotalInodes / InodesPerBlock

	// DirEntrySize is the on-disk size of one directory entry.
	DirEntrySize = 64 + 2 + 1 // name + inodeNumber + fileType

	// DirEntriesPerBlock is the fixed fan-out of a directory block.
	DirEntriesPerBlock = 7

	// DirNameMaxLength is the longest name (excluding the implicit NUL
	// terminator) a directory entry can hold.
	DirNameMaxLength = 63

	// NumDirectBlocks is the number of direct block pointers in an inode.
	NumDirectBlocks = 6

	// PointersPerIndexBlock is how many uint16 block IDs fit in one 512-byte
	// indirect index block.
	PointersPerIndexBlock = BlockSize / 2
)

// File type tags stored in a directory entry.
const (
	FileTypeRegular   uint8 = 0
	FileTypeDirectory uint8 = 1
)

var nativeOrder = binary.NativeEndian

// RawSuperblock is the first 512 bytes of the image (block 0).
//
// The inode free-bitmap occupies the first 32 bytes (256 bits); the
// remaining fields are informational caches recomputed lazily, not load
// bearing (the true state always lives in the bitmaps themselves).
type RawSuperblock struct {
	InodeBitmap    [TotalInodes / 8]byte
	TotalBlocks    uint32
	FreeBlockCount uint32
	BlockSize      uint32
}

// EncodeSuperblock serializes sb into a freshly allocated, block-sized
// buffer, matching the teacher's use of bytewriter to treat a fixed-size
// slice as an io.Writer for superblock construction.
func EncodeSuperblock(sb *RawSuperblock) []byte {
	buf := make([]byte, BlockSize)
	w := bytewriter.New(buf)
	binary.Write(w, nativeOrder, sb)
	return buf
}

// DecodeSuperblock reads a RawSuperblock out of a block-sized buffer.
func DecodeSuperblock(buf []byte) RawSuperblock {
	var sb RawSuperblock
	r := bytes.NewReader(buf[:BlockSize])
	binary.Read(r, nativeOrder, &sb)
	return sb
}

// RawInode is the 64-byte on-disk inode record described in spec.md §6.
type RawInode struct {
	FileSize            int32
	DeviceID            int32
	UserID              int32
	GroupID             int32
	FileMode            int32
	LinkCount           int32
	ChangeTime          int64
	ModificationTime    int64
	AccessTime          int64
	DirectBlocks        [NumDirectBlocks]uint16
	IndirectBlock       uint16
	DoubleIndirectBlock uint16
}

// EncodeInode serializes inode into exactly InodeSize bytes.
func EncodeInode(inode *RawInode) []byte {
	buf := make([]byte, InodeSize)
	w := bytewriter.New(buf)
	binary.Write(w, nativeOrder, inode)
	return buf
}

// DecodeInode parses a 64-byte buffer into a RawInode.
func DecodeInode(buf []byte) RawInode {
	var inode RawInode
	r := bytes.NewReader(buf[:InodeSize])
	binary.Read(r, nativeOrder, &inode)
	return inode
}

// IsAllocated reports whether this inode slot is in use. Slot usage is
// tracked in the superblock's inode bitmap, not in the inode record itself;
// an inode with LinkCount 0 is conventionally "never written" but the
// bitmap, not this field, is authoritative per spec.md I2. fsys uses this as
// a cross-check: a live directory entry pointing at an inode whose own
// record disagrees means the bitmap and table have drifted apart.
func (inode *RawInode) IsAllocated() bool {
	return inode.LinkCount > 0
}

// RawDirEntry is one 67-byte slot within a directory block.
type RawDirEntry struct {
	Name        [DirNameMaxLength + 1]byte
	InodeNumber uint16
	FileType    uint8
}

// IsFree reports whether this slot is unused.
func (e *RawDirEntry) IsFree() bool {
	return e.InodeNumber == 0
}

// NameString returns the entry's name with trailing NUL padding stripped.
func (e *RawDirEntry) NameString() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

// SetName copies name into the entry's fixed-width field, NUL-padding the
// remainder. It panics if name is too long to fit; callers are expected to
// have already validated the name length (spec.md §4.4: segments longer
// than 63 bytes are rejected before this point).
func (e *RawDirEntry) SetName(name string) {
	if len(name) > DirNameMaxLength {
		panic("layout: name too long for directory entry")
	}
	for i := range e.Name {
		e.Name[i] = 0
	}
	copy(e.Name[:], name)
}

// DirectoryBlock is the in-memory view of one 512-byte directory block: a
// fixed array of DirEntriesPerBlock entries, the first 469 bytes of the
// block, followed by zero padding to fill out the sector.
type DirectoryBlock struct {
	Entries [DirEntriesPerBlock]RawDirEntry
}

// EncodeDirectoryBlock serializes dir into a full, zero-padded block.
func EncodeDirectoryBlock(dir *DirectoryBlock) []byte {
	buf := make([]byte, BlockSize)
	w := bytewriter.New(buf)
	for i := range dir.Entries {
		binary.Write(w, nativeOrder, &dir.Entries[i])
	}
	return buf
}

// DecodeDirectoryBlock parses a block-sized buffer into a DirectoryBlock.
func DecodeDirectoryBlock(buf []byte) DirectoryBlock {
	var dir DirectoryBlock
	r := bytes.NewReader(buf[:DirEntriesPerBlock*DirEntrySize])
	for i := range dir.Entries {
		binary.Read(r, nativeOrder, &dir.Entries[i])
	}
	return dir
}

// DecodeIndexBlock parses a block-sized buffer into PointersPerIndexBlock
// uint16 block IDs (a single-indirect or one level of a double-indirect
// block).
func DecodeIndexBlock(buf []byte) [PointersPerIndexBlock]uint16 {
	var ptrs [PointersPerIndexBlock]uint16
	r := bytes.NewReader(buf[:BlockSize])
	binary.Read(r, nativeOrder, &ptrs)
	return ptrs
}

// EncodeIndexBlock serializes a set of block pointers into a full block.
func EncodeIndexBlock(ptrs *[PointersPerIndexBlock]uint16) []byte {
	buf := make([]byte, BlockSize)
	w := bytewriter.New(buf)
	binary.Write(w, nativeOrder, ptrs)
	return buf
}
