package fsys

import (
	"strings"

	"github.com/dargueta/tinyfs/blockstore"
	"github.com/dargueta/tinyfs/errors"
	"github.com/dargueta/tinyfs/layout"
)

// splitAbsolutePath validates that path is absolute and splits it into the
// intermediate directory segments and the final ("leaf") segment. A
// trailing slash is not special: it produces an empty leaf segment, which
// is invalid wherever a leaf name is required (create, open).
func splitAbsolutePath(path string) (intermediates []string, leaf string, err errors.DriverError) {
	if path == "" || path[0] != '/' {
		return nil, "", errors.ErrInvalidArgument.WithMessage("path must be absolute")
	}

	rest := path[1:]
	if rest == "" {
		// The root path has no leaf of its own; callers asking for one
		// (create, open) must reject this themselves.
		return nil, "", nil
	}

	segments := strings.Split(rest, "/")
	for _, seg := range segments[:len(segments)-1] {
		if len(seg) > layout.DirNameMaxLength {
			return nil, "", errors.ErrNameTooLong.WithMessage(seg)
		}
	}
	leaf = segments[len(segments)-1]
	if len(leaf) > layout.DirNameMaxLength {
		return nil, "", errors.ErrNameTooLong.WithMessage(leaf)
	}
	return segments[:len(segments)-1], leaf, nil
}

// rootDirectory reads the root inode and its single directory block.
func (fs *FileSystem) rootDirectory() (layout.RawInode, blockstore.BlockID, layout.DirectoryBlock, errors.DriverError) {
	inode, err := fs.readInode(RootInode)
	if err != nil {
		return layout.RawInode{}, 0, layout.DirectoryBlock{}, err
	}
	blockID := blockstore.BlockID(inode.DirectBlocks[0])
	buf := make([]byte, layout.BlockSize)
	if err := fs.store.Read(blockID, buf); err != nil {
		return layout.RawInode{}, 0, layout.DirectoryBlock{}, err
	}
	return inode, blockID, layout.DecodeDirectoryBlock(buf), nil
}

// directoryOf reads inode n's single directory block, assuming n is known
// to name a directory.
func (fs *FileSystem) directoryOf(n Inumber) (blockstore.BlockID, layout.DirectoryBlock, errors.DriverError) {
	inode, err := fs.readInode(n)
	if err != nil {
		return 0, layout.DirectoryBlock{}, err
	}
	blockID := blockstore.BlockID(inode.DirectBlocks[0])
	buf := make([]byte, layout.BlockSize)
	if err := fs.store.Read(blockID, buf); err != nil {
		return 0, layout.DirectoryBlock{}, err
	}
	return blockID, layout.DecodeDirectoryBlock(buf), nil
}

// resolveParentAndLeaf walks every intermediate segment of path, failing if
// any is missing or not a directory, and returns the final directory's
// inode number, its data block id, its decoded contents, and the leaf
// segment still to be looked up (or inserted) by the caller.
func (fs *FileSystem) resolveParentAndLeaf(path string) (Inumber, blockstore.BlockID, layout.DirectoryBlock, string, errors.DriverError) {
	intermediates, leaf, err := splitAbsolutePath(path)
	if err != nil {
		return 0, 0, layout.DirectoryBlock{}, "", err
	}
	if leaf == "" {
		return 0, 0, layout.DirectoryBlock{}, "", errors.ErrInvalidArgument.WithMessage("path has no leaf name: " + path)
	}

	currentInum := RootInode
	_, currentBlockID, currentDir, rootErr := fs.rootDirectory()
	if rootErr != nil {
		return 0, 0, layout.DirectoryBlock{}, "", rootErr
	}

	for _, seg := range intermediates {
		_, entry, ok := findEntry(&currentDir, seg)
		if !ok {
			return 0, 0, layout.DirectoryBlock{}, "", errors.ErrNotFound.WithMessage(seg)
		}
		if entry.FileType != layout.FileTypeDirectory {
			return 0, 0, layout.DirectoryBlock{}, "", errors.ErrNotADirectory.WithMessage(seg)
		}

		currentInum = Inumber(entry.InodeNumber)
		nextBlockID, nextDir, err := fs.directoryOf(currentInum)
		if err != nil {
			return 0, 0, layout.DirectoryBlock{}, "", err
		}
		currentBlockID = nextBlockID
		currentDir = nextDir
	}

	return currentInum, currentBlockID, currentDir, leaf, nil
}

// resolveDirectory resolves a full path (including its final segment) to a
// directory. "/" resolves to the root directory directly.
func (fs *FileSystem) resolveDirectory(path string) (Inumber, blockstore.BlockID, layout.DirectoryBlock, errors.DriverError) {
	if path == "/" {
		_, blockID, dir, err := fs.rootDirectory()
		return RootInode, blockID, dir, err
	}

	_, _, parentDir, leaf, err := fs.resolveParentAndLeaf(path)
	if err != nil {
		return 0, 0, layout.DirectoryBlock{}, err
	}

	_, entry, ok := findEntry(&parentDir, leaf)
	if !ok {
		return 0, 0, layout.DirectoryBlock{}, errors.ErrNotFound.WithMessage(path)
	}
	if entry.FileType != layout.FileTypeDirectory {
		return 0, 0, layout.DirectoryBlock{}, errors.ErrNotADirectory.WithMessage(path)
	}

	childInum := Inumber(entry.InodeNumber)
	blockID, dir, err := fs.directoryOf(childInum)
	return childInum, blockID, dir, err
}
