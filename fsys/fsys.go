// Package fsys implements the mount handle: path resolution, directory
// operations, the inode table, and the file I/O engine layered on top of
// blockstore and layout. It is the thing callers actually use — format,
// mount, create, open, read, write, seek, remove, list.
package fsys

import (
	"time"

	"github.com/dargueta/tinyfs/bitmap"
	"github.com/dargueta/tinyfs/blockstore"
	"github.com/dargueta/tinyfs/errors"
	"github.com/dargueta/tinyfs/layout"
)

// Inumber is a tagged newtype for an inode slot number, kept distinct from
// block IDs and descriptor indices to prevent accidental cross-domain
// arithmetic.
type Inumber uint16

// RootInode is the inode number reserved for the root directory.
const RootInode Inumber = 0

// FD is an in-memory file descriptor index.
type FD int

// descriptor is one slot of the 256-entry file descriptor table.
type descriptor struct {
	inode    Inumber
	position int64
}

// FileSystem is the mount handle. It exclusively owns the block store, the
// descriptor table, and the descriptor bitmap; the block store in turn
// exclusively owns the backing stream and the free-block bitmap.
type FileSystem struct {
	store       *blockstore.Store
	sbBuf       []byte
	inodeBitmap bitmap.Bitmap
	descriptors [256]descriptor
	descFree    bitmap.Bitmap
}

// Format creates a brand-new image at path and initializes it: an empty
// inode table, a root directory occupying inode 0, and a fresh free-block
// bitmap with only the filesystem's own structural blocks marked in use.
func Format(path string) (*FileSystem, errors.DriverError) {
	store, err := blockstore.Create(path)
	if err != nil {
		return nil, err
	}
	return initializeFileSystem(store)
}

// Mount opens an existing image at path and reconstructs in-memory state
// (the inode free-map, the descriptor table) from it.
func Mount(path string) (*FileSystem, errors.DriverError) {
	store, err := blockstore.Open(path)
	if err != nil {
		return nil, err
	}
	return attachFileSystem(store)
}

func initializeFileSystem(store *blockstore.Store) (*FileSystem, errors.DriverError) {
	fs, err := attachFileSystem(store)
	if err != nil {
		return nil, err
	}

	// Reserve the structural blocks the spec fixes in place: the
	// super-block (0) and the inode table (1..32). These never appear in
	// the free-block bitmap as available.
	if reqErr := fs.store.Request(blockstore.BlockID(0)); reqErr != nil {
		store.Destroy()
		return nil, reqErr
	}
	for b := layout.InodeTableStartBlock; b < layout.InodeTableStartBlock+layout.InodeTableBlockCount; b++ {
		if reqErr := fs.store.Request(blockstore.BlockID(b)); reqErr != nil {
			store.Destroy()
			return nil, reqErr
		}
	}

	rootBlockID, allocErr := fs.store.Allocate()
	if allocErr != nil {
		store.Destroy()
		return nil, allocErr
	}

	var emptyDir layout.DirectoryBlock
	if werr := fs.store.Write(rootBlockID, layout.EncodeDirectoryBlock(&emptyDir)); werr != nil {
		store.Destroy()
		return nil, werr
	}

	now := time.Now().Unix()
	rootInode := layout.RawInode{
		FileSize:         layout.BlockSize,
		FileMode:         1777,
		LinkCount:        1,
		ChangeTime:       now,
		ModificationTime: now,
		AccessTime:       now,
	}
	rootInode.DirectBlocks[0] = uint16(rootBlockID)

	fs.inodeBitmap.Set(int(RootInode))
	if werr := fs.writeInode(RootInode, rootInode); werr != nil {
		store.Destroy()
		return nil, werr
	}
	if werr := fs.writeSuperblock(); werr != nil {
		store.Destroy()
		return nil, werr
	}

	return fs, nil
}

func attachFileSystem(store *blockstore.Store) (*FileSystem, errors.DriverError) {
	fs := &FileSystem{
		store:    store,
		sbBuf:    make([]byte, layout.BlockSize),
		descFree: bitmap.New(256),
	}
	if err := fs.store.Read(blockstore.BlockID(0), fs.sbBuf); err != nil {
		return nil, err
	}
	fs.inodeBitmap = bitmap.Overlay(layout.TotalInodes, fs.sbBuf[:layout.TotalInodes/8])
	return fs, nil
}

func (fs *FileSystem) writeSuperblock() errors.DriverError {
	var sb layout.RawSuperblock
	copy(sb.InodeBitmap[:], fs.inodeBitmap.Data())
	sb.TotalBlocks = blockstore.TotalBlocks
	sb.FreeBlockCount = uint32(fs.store.FreeBlockCount())
	sb.BlockSize = layout.BlockSize
	copy(fs.sbBuf, layout.EncodeSuperblock(&sb))
	return fs.store.Write(blockstore.BlockID(0), fs.sbBuf)
}

// Unmount releases the block store, the descriptor bitmap, and the handle
// itself, in that order, aggregating any failures along the way.
func (fs *FileSystem) Unmount() errors.DriverError {
	err := fs.store.Destroy()
	fs.store = nil
	fs.sbBuf = nil
	fs.descFree = bitmap.Bitmap{}
	return err
}

// Stats summarizes the filesystem's current resource usage.
type Stats struct {
	TotalBlocks int
	FreeBlocks  int
	TotalInodes int
	FreeInodes  int
}

// FSStat snapshots free/used block and inode counts.
func (fs *FileSystem) FSStat() Stats {
	return Stats{
		TotalBlocks: blockstore.TotalBlocks,
		FreeBlocks:  fs.store.FreeBlockCount(),
		TotalInodes: layout.TotalInodes,
		FreeInodes:  layout.TotalInodes - fs.inodeBitmap.Popcount(),
	}
}

// ObjectStat describes one filesystem object's metadata, as read off its
// inode. It's the supplemented read-only counterpart to the driver's
// write-oriented Create.
type ObjectStat struct {
	InodeNumber      Inumber
	FileSize         int64
	FileMode         int32
	LinkCount        int32
	IsDirectory      bool
	ChangeTime       time.Time
	ModificationTime time.Time
	AccessTime       time.Time
}

// Stat resolves path and returns its inode's metadata without opening a
// descriptor.
func (fs *FileSystem) Stat(path string) (ObjectStat, errors.DriverError) {
	if path == "/" {
		inode, err := fs.readInode(RootInode)
		if err != nil {
			return ObjectStat{}, err
		}
		return inodeToStat(RootInode, inode, true), nil
	}

	_, _, parentDir, leaf, err := fs.resolveParentAndLeaf(path)
	if err != nil {
		return ObjectStat{}, err
	}

	_, entry, ok := findEntry(&parentDir, leaf)
	if !ok {
		return ObjectStat{}, errors.ErrNotFound.WithMessage(path)
	}

	inode, err := fs.readInode(Inumber(entry.InodeNumber))
	if err != nil {
		return ObjectStat{}, err
	}
	return inodeToStat(Inumber(entry.InodeNumber), inode, entry.FileType == layout.FileTypeDirectory), nil
}

func inodeToStat(n Inumber, inode layout.RawInode, isDir bool) ObjectStat {
	return ObjectStat{
		InodeNumber:      n,
		FileSize:         int64(inode.FileSize),
		FileMode:         inode.FileMode,
		LinkCount:        inode.LinkCount,
		IsDirectory:      isDir,
		ChangeTime:       time.Unix(inode.ChangeTime, 0),
		ModificationTime: time.Unix(inode.ModificationTime, 0),
		AccessTime:       time.Unix(inode.AccessTime, 0),
	}
}
