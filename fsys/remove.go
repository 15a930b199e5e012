package fsys

import (
	"github.com/dargueta/tinyfs/blockstore"
	"github.com/dargueta/tinyfs/errors"
	"github.com/dargueta/tinyfs/layout"
)

// Remove deletes the file or directory named by path. A non-empty
// directory is rejected with ErrDirectoryNotEmpty; nothing is released in
// that case.
func (fs *FileSystem) Remove(path string) errors.DriverError {
	_, parentBlockID, parentDir, leaf, err := fs.resolveParentAndLeaf(path)
	if err != nil {
		return err
	}

	slot, entry, ok := findEntry(&parentDir, leaf)
	if !ok {
		return errors.ErrNotFound.WithMessage(path)
	}

	childInum := Inumber(entry.InodeNumber)
	childInode, err := fs.readInode(childInum)
	if err != nil {
		return err
	}

	if entry.FileType == layout.FileTypeDirectory {
		childBlockID := blockstore.BlockID(childInode.DirectBlocks[0])
		buf := make([]byte, layout.BlockSize)
		if err := fs.store.Read(childBlockID, buf); err != nil {
			return err
		}
		childDir := layout.DecodeDirectoryBlock(buf)
		if !isEmpty(&childDir) {
			return errors.ErrDirectoryNotEmpty.WithMessage(path)
		}
		fs.store.Release(childBlockID)
	} else {
		fs.releaseInodeBlocks(childInode)
	}

	if err := fs.writeInode(childInum, layout.RawInode{}); err != nil {
		return err
	}
	if err := fs.freeInode(childInum); err != nil {
		return err
	}

	parentDir.Entries[slot] = layout.RawDirEntry{}
	return fs.store.Write(parentBlockID, layout.EncodeDirectoryBlock(&parentDir))
}

// ReadDir lists the occupied entries of the directory named by path, in
// slot order.
func (fs *FileSystem) ReadDir(path string) ([]DirEntry, errors.DriverError) {
	_, _, dir, err := fs.resolveDirectory(path)
	if err != nil {
		return nil, err
	}
	return listEntries(&dir), nil
}
