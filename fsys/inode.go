package fsys

import (
	"github.com/dargueta/tinyfs/blockstore"
	"github.com/dargueta/tinyfs/errors"
	"github.com/dargueta/tinyfs/layout"
)

// blockAndSlotForInode locates inode n's containing block and its slot
// within that block, per §4.3: inode N lives at block 1+(N/8), slot N%8.
func blockAndSlotForInode(n Inumber) (blockstore.BlockID, int) {
	block := layout.InodeTableStartBlock + int(n)/layout.InodesPerBlock
	slot := int(n) % layout.InodesPerBlock
	return blockstore.BlockID(block), slot
}

// readInode reads the entire block containing inode n and decodes just
// that inode's 64 bytes out of it. Every caller reaches an inode through a
// live directory entry or open descriptor, so the decoded record must
// itself claim to be allocated; if it doesn't, the inode bitmap and the
// inode table have drifted apart.
func (fs *FileSystem) readInode(n Inumber) (layout.RawInode, errors.DriverError) {
	if uint(n) >= layout.TotalInodes {
		return layout.RawInode{}, errors.ErrArgumentOutOfRange.WithMessage("inode number out of range")
	}

	blockID, slot := blockAndSlotForInode(n)
	buf := make([]byte, layout.BlockSize)
	if err := fs.store.Read(blockID, buf); err != nil {
		return layout.RawInode{}, err
	}

	start := slot * layout.InodeSize
	inode := layout.DecodeInode(buf[start : start+layout.InodeSize])
	if !inode.IsAllocated() {
		return layout.RawInode{}, errors.ErrFileSystemCorrupted.WithMessage(
			"referenced inode is marked free in its own record")
	}
	return inode, nil
}

// writeInode reads the whole block containing inode n, replaces just that
// inode's bytes, and writes the block back — inodes share a block, so a
// single inode write must not clobber its seven neighbors.
func (fs *FileSystem) writeInode(n Inumber, inode layout.RawInode) errors.DriverError {
	if uint(n) >= layout.TotalInodes {
		return errors.ErrArgumentOutOfRange.WithMessage("inode number out of range")
	}

	blockID, slot := blockAndSlotForInode(n)
	buf := make([]byte, layout.BlockSize)
	if err := fs.store.Read(blockID, buf); err != nil {
		return err
	}

	start := slot * layout.InodeSize
	copy(buf[start:start+layout.InodeSize], layout.EncodeInode(&inode))
	return fs.store.Write(blockID, buf)
}

// allocateInode finds the lowest free inode slot, marks it in use, and
// persists the super-block's inode bitmap immediately.
func (fs *FileSystem) allocateInode() (Inumber, errors.DriverError) {
	idx, err := fs.inodeBitmap.AllocateFirstFree()
	if err != nil {
		return 0, err
	}
	if werr := fs.writeSuperblock(); werr != nil {
		fs.inodeBitmap.Reset(idx)
		return 0, werr
	}
	return Inumber(idx), nil
}

// freeInode clears n's bit in the inode bitmap and persists the
// super-block.
func (fs *FileSystem) freeInode(n Inumber) errors.DriverError {
	fs.inodeBitmap.Reset(int(n))
	return fs.writeSuperblock()
}
