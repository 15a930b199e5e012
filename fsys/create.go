package fsys

import (
	"time"

	"github.com/dargueta/tinyfs/blockstore"
	"github.com/dargueta/tinyfs/errors"
	"github.com/dargueta/tinyfs/layout"
)

// Create makes a new regular file or directory at path. Any failure after
// partial allocation (inode, directory data block) releases what was
// already taken before returning.
func (fs *FileSystem) Create(path string, fileType uint8) (Inumber, errors.DriverError) {
	_, parentBlockID, parentDir, leaf, err := fs.resolveParentAndLeaf(path)
	if err != nil {
		return 0, err
	}

	slot, hasSlot, nameTaken := findFreeSlot(&parentDir, leaf)
	if nameTaken {
		return 0, errors.ErrExists.WithMessage(path)
	}
	if !hasSlot {
		return 0, errors.ErrNoSpaceOnDevice.WithMessage("parent directory is full")
	}

	newInum, err := fs.allocateInode()
	if err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	inode := layout.RawInode{
		LinkCount:        1,
		ChangeTime:       now,
		ModificationTime: now,
		AccessTime:       now,
	}

	entryType := layout.FileTypeRegular
	if fileType == layout.FileTypeDirectory {
		entryType = layout.FileTypeDirectory
		inode.FileMode = 1777

		dataBlockID, allocErr := fs.store.Allocate()
		if allocErr != nil {
			fs.freeInode(newInum)
			return 0, allocErr
		}

		var emptyDir layout.DirectoryBlock
		if werr := fs.store.Write(dataBlockID, layout.EncodeDirectoryBlock(&emptyDir)); werr != nil {
			fs.store.Release(dataBlockID)
			fs.freeInode(newInum)
			return 0, werr
		}

		inode.DirectBlocks[0] = uint16(dataBlockID)
		inode.FileSize = layout.BlockSize
	} else {
		inode.FileMode = 777
		inode.FileSize = 0
	}

	if werr := fs.writeInode(newInum, inode); werr != nil {
		fs.releaseInodeBlocks(inode)
		fs.freeInode(newInum)
		return 0, werr
	}

	parentDir.Entries[slot].SetName(leaf)
	parentDir.Entries[slot].InodeNumber = uint16(newInum)
	parentDir.Entries[slot].FileType = entryType

	if werr := fs.store.Write(parentBlockID, layout.EncodeDirectoryBlock(&parentDir)); werr != nil {
		fs.releaseInodeBlocks(inode)
		fs.freeInode(newInum)
		return 0, werr
	}

	return newInum, nil
}

// releaseInodeBlocks releases every block an inode still references. Used
// to unwind a partially-built Create, and reused by Remove to tear down a
// file's entire block map.
func (fs *FileSystem) releaseInodeBlocks(inode layout.RawInode) {
	for _, b := range inode.DirectBlocks {
		if b != 0 {
			fs.store.Release(blockstore.BlockID(b))
		}
	}
	if inode.IndirectBlock != 0 {
		fs.releaseIndexBlock(blockstore.BlockID(inode.IndirectBlock))
	}
	if inode.DoubleIndirectBlock != 0 {
		outerPtrs := fs.readIndexBlock(blockstore.BlockID(inode.DoubleIndirectBlock))
		for _, outerID := range outerPtrs {
			if outerID != 0 {
				fs.releaseIndexBlock(blockstore.BlockID(outerID))
			}
		}
		fs.store.Release(blockstore.BlockID(inode.DoubleIndirectBlock))
	}
}

// releaseIndexBlock releases every data block an indirect index block
// points to, then the index block itself.
func (fs *FileSystem) releaseIndexBlock(id blockstore.BlockID) {
	ptrs := fs.readIndexBlock(id)
	for _, p := range ptrs {
		if p != 0 {
			fs.store.Release(blockstore.BlockID(p))
		}
	}
	fs.store.Release(id)
}

func (fs *FileSystem) readIndexBlock(id blockstore.BlockID) [layout.PointersPerIndexBlock]uint16 {
	buf := make([]byte, layout.BlockSize)
	fs.store.Read(id, buf)
	return layout.DecodeIndexBlock(buf)
}
