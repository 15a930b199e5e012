package fsys

import (
	"github.com/dargueta/tinyfs/blockstore"
	"github.com/dargueta/tinyfs/errors"
	"github.com/dargueta/tinyfs/layout"
)

// Whence tags for Seek, matching SET/CUR/END from §4.7.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

const (
	// directLimit is the first logical block not covered by direct
	// pointers.
	directLimit = layout.NumDirectBlocks
	// indirectLimit is the first logical block not covered by the
	// single-indirect block.
	indirectLimit = directLimit + layout.PointersPerIndexBlock
	// doubleIndirectLimit is the first logical block not covered by the
	// double-indirect block (and thus the first unreachable one).
	doubleIndirectLimit = indirectLimit + layout.PointersPerIndexBlock*layout.PointersPerIndexBlock
)

func (fs *FileSystem) checkFD(fd FD) errors.DriverError {
	if fd < 0 || int(fd) >= len(fs.descriptors) || !fs.descFree.Test(int(fd)) {
		return errors.ErrInvalidFileDescriptor.WithMessage("descriptor not in use")
	}
	return nil
}

// Open resolves path, rejects directories, and allocates a descriptor slot
// positioned at the start of the file.
func (fs *FileSystem) Open(path string) (FD, errors.DriverError) {
	_, _, parentDir, leaf, err := fs.resolveParentAndLeaf(path)
	if err != nil {
		return -1, err
	}

	_, entry, ok := findEntry(&parentDir, leaf)
	if !ok {
		return -1, errors.ErrNotFound.WithMessage(path)
	}
	if entry.FileType == layout.FileTypeDirectory {
		return -1, errors.ErrIsADirectory.WithMessage(path)
	}

	slot, ok := fs.descFree.FirstFreeZero()
	if !ok {
		return -1, errors.ErrNoSpaceOnDevice.WithMessage("descriptor table full")
	}
	fs.descFree.Set(slot)
	fs.descriptors[slot] = descriptor{inode: Inumber(entry.InodeNumber), position: 0}
	return FD(slot), nil
}

// Close invalidates fd. Double-close fails.
func (fs *FileSystem) Close(fd FD) errors.DriverError {
	if err := fs.checkFD(fd); err != nil {
		return err
	}
	fs.descFree.Reset(int(fd))
	fs.descriptors[fd] = descriptor{}
	return nil
}

// Seek recomputes fd's position per whence and clamps it to [0, fileSize].
func (fs *FileSystem) Seek(fd FD, offset int64, whence Whence) (int64, errors.DriverError) {
	if err := fs.checkFD(fd); err != nil {
		return 0, err
	}
	d := fs.descriptors[fd]
	inode, err := fs.readInode(d.inode)
	if err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = d.position
	case SeekEnd:
		base = int64(inode.FileSize)
	default:
		return 0, errors.ErrInvalidArgument.WithMessage("unknown whence")
	}

	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	if newPos > int64(inode.FileSize) {
		newPos = int64(inode.FileSize)
	}

	d.position = newPos
	fs.descriptors[fd] = d
	return newPos, nil
}

// mapLogicalBlockForRead returns the physical block backing logical block L,
// or blockstore.NoBlock if that block was never materialized (a hole).
func (fs *FileSystem) mapLogicalBlockForRead(inode *layout.RawInode, logical int) (blockstore.BlockID, errors.DriverError) {
	switch {
	case logical < directLimit:
		return blockstore.BlockID(inode.DirectBlocks[logical]), nil

	case logical < indirectLimit:
		if inode.IndirectBlock == 0 {
			return blockstore.NoBlock, nil
		}
		ptrs := fs.readIndexBlock(blockstore.BlockID(inode.IndirectBlock))
		return blockstore.BlockID(ptrs[logical-directLimit]), nil

	case logical < doubleIndirectLimit:
		if inode.DoubleIndirectBlock == 0 {
			return blockstore.NoBlock, nil
		}
		d := logical - indirectLimit
		outerIdx, innerIdx := d/layout.PointersPerIndexBlock, d%layout.PointersPerIndexBlock
		outerPtrs := fs.readIndexBlock(blockstore.BlockID(inode.DoubleIndirectBlock))
		if outerPtrs[outerIdx] == 0 {
			return blockstore.NoBlock, nil
		}
		innerPtrs := fs.readIndexBlock(blockstore.BlockID(outerPtrs[outerIdx]))
		return blockstore.BlockID(innerPtrs[innerIdx]), nil

	default:
		return blockstore.NoBlock, nil
	}
}

// mapLogicalBlockForWrite is mapLogicalBlockForRead's allocating twin: it
// materializes any data or index block still at 0 along the path to L,
// mutating inode's pointer fields in place. A failed allocation partway
// through is returned as-is; the caller turns it into a short write.
func (fs *FileSystem) mapLogicalBlockForWrite(inode *layout.RawInode, logical int) (blockstore.BlockID, errors.DriverError) {
	if logical >= doubleIndirectLimit {
		return blockstore.NoBlock, errors.ErrArgumentOutOfRange.WithMessage("write exceeds addressable file range")
	}

	if logical < directLimit {
		if inode.DirectBlocks[logical] == 0 {
			id, err := fs.store.Allocate()
			if err != nil {
				return blockstore.NoBlock, err
			}
			inode.DirectBlocks[logical] = uint16(id)
		}
		return blockstore.BlockID(inode.DirectBlocks[logical]), nil
	}

	if logical < indirectLimit {
		if inode.IndirectBlock == 0 {
			id, err := fs.zeroNewIndexBlock()
			if err != nil {
				return blockstore.NoBlock, err
			}
			inode.IndirectBlock = uint16(id)
		}

		idx := logical - directLimit
		ptrs := fs.readIndexBlock(blockstore.BlockID(inode.IndirectBlock))
		if ptrs[idx] == 0 {
			id, err := fs.store.Allocate()
			if err != nil {
				return blockstore.NoBlock, err
			}
			ptrs[idx] = uint16(id)
			if werr := fs.store.Write(blockstore.BlockID(inode.IndirectBlock), layout.EncodeIndexBlock(&ptrs)); werr != nil {
				return blockstore.NoBlock, werr
			}
		}
		return blockstore.BlockID(ptrs[idx]), nil
	}

	if inode.DoubleIndirectBlock == 0 {
		id, err := fs.zeroNewIndexBlock()
		if err != nil {
			return blockstore.NoBlock, err
		}
		inode.DoubleIndirectBlock = uint16(id)
	}

	d := logical - indirectLimit
	outerIdx, innerIdx := d/layout.PointersPerIndexBlock, d%layout.PointersPerIndexBlock

	outerPtrs := fs.readIndexBlock(blockstore.BlockID(inode.DoubleIndirectBlock))
	if outerPtrs[outerIdx] == 0 {
		id, err := fs.zeroNewIndexBlock()
		if err != nil {
			return blockstore.NoBlock, err
		}
		outerPtrs[outerIdx] = uint16(id)
		if werr := fs.store.Write(blockstore.BlockID(inode.DoubleIndirectBlock), layout.EncodeIndexBlock(&outerPtrs)); werr != nil {
			return blockstore.NoBlock, werr
		}
	}

	innerBlockID := blockstore.BlockID(outerPtrs[outerIdx])
	innerPtrs := fs.readIndexBlock(innerBlockID)
	if innerPtrs[innerIdx] == 0 {
		id, err := fs.store.Allocate()
		if err != nil {
			return blockstore.NoBlock, err
		}
		innerPtrs[innerIdx] = uint16(id)
		if werr := fs.store.Write(innerBlockID, layout.EncodeIndexBlock(&innerPtrs)); werr != nil {
			return blockstore.NoBlock, werr
		}
	}
	return blockstore.BlockID(innerPtrs[innerIdx]), nil
}

func (fs *FileSystem) zeroNewIndexBlock() (blockstore.BlockID, errors.DriverError) {
	id, err := fs.store.Allocate()
	if err != nil {
		return blockstore.NoBlock, err
	}
	zero := make([]byte, layout.BlockSize)
	if werr := fs.store.Write(id, zero); werr != nil {
		fs.store.Release(id)
		return blockstore.NoBlock, werr
	}
	return id, nil
}

// Read copies up to len(dst) bytes starting at fd's current position,
// clamped to the file's size, and advances the position by the amount
// actually copied. A hole (an unmaterialized block within the file's
// logical size) stops the read early with whatever was copied so far.
func (fs *FileSystem) Read(fd FD, dst []byte) (int, errors.DriverError) {
	if err := fs.checkFD(fd); err != nil {
		return 0, err
	}
	d := fs.descriptors[fd]
	inode, err := fs.readInode(d.inode)
	if err != nil {
		return 0, err
	}

	available := int64(inode.FileSize) - d.position
	if available <= 0 {
		return 0, nil
	}
	toRead := int64(len(dst))
	if toRead > available {
		toRead = available
	}

	copied := int64(0)
	pos := d.position
	for copied < toRead {
		logical := int(pos / layout.BlockSize)
		offsetInBlock := int(pos % layout.BlockSize)

		physID, err := fs.mapLogicalBlockForRead(&inode, logical)
		if err != nil {
			fs.descriptors[fd] = descriptor{inode: d.inode, position: pos}
			return int(copied), err
		}
		if physID == blockstore.NoBlock {
			break
		}

		block := make([]byte, layout.BlockSize)
		if err := fs.store.Read(physID, block); err != nil {
			fs.descriptors[fd] = descriptor{inode: d.inode, position: pos}
			return int(copied), err
		}

		remaining := toRead - copied
		n := int64(layout.BlockSize - offsetInBlock)
		if n > remaining {
			n = remaining
		}
		copy(dst[copied:copied+n], block[offsetInBlock:int64(offsetInBlock)+n])

		copied += n
		pos += n
	}

	fs.descriptors[fd] = descriptor{inode: d.inode, position: pos}
	return int(copied), nil
}

// Write copies src into the file starting at fd's current position,
// allocating data and index blocks as needed and advancing the position by
// the amount actually written. fileSize grows only when the write ends past
// the old end of file, and then to that end position. An allocation failure
// partway through yields a short write, not an error, matching §4.10.
func (fs *FileSystem) Write(fd FD, src []byte) (int, errors.DriverError) {
	if err := fs.checkFD(fd); err != nil {
		return 0, err
	}
	d := fs.descriptors[fd]
	inode, err := fs.readInode(d.inode)
	if err != nil {
		return 0, err
	}

	written := int64(0)
	pos := d.position

	// Allocation or I/O failure partway through just stops the loop — a
	// short write is success up to that point, not an error (§4.10).
	for written < int64(len(src)) {
		logical := int(pos / layout.BlockSize)
		offsetInBlock := int(pos % layout.BlockSize)

		physID, mapErr := fs.mapLogicalBlockForWrite(&inode, logical)
		if mapErr != nil {
			break
		}

		remaining := int64(len(src)) - written
		n := int64(layout.BlockSize - offsetInBlock)
		if n > remaining {
			n = remaining
		}

		block := make([]byte, layout.BlockSize)
		if offsetInBlock != 0 || n != layout.BlockSize {
			if err := fs.store.Read(physID, block); err != nil {
				break
			}
		}
		copy(block[offsetInBlock:int64(offsetInBlock)+n], src[written:written+n])
		if err := fs.store.Write(physID, block); err != nil {
			break
		}

		written += n
		pos += n
	}

	if pos > int64(inode.FileSize) {
		inode.FileSize = int32(pos)
	}

	fs.descriptors[fd] = descriptor{inode: d.inode, position: pos}
	if werr := fs.writeInode(d.inode, inode); werr != nil {
		return int(written), werr
	}

	return int(written), nil
}
