// Package blockstore implements the fixed-geometry block device the rest of
// tinyfs is built on: 65,536 blocks of 512 bytes backed by a single file,
// with a free-block bitmap occupying the trailing 16 blocks of the image.
//
// The whole image is read into memory on Open/Create and kept there; a
// dirty-block bitmap tracks which blocks have been mutated since the last
// flush, and Destroy writes all of them back before releasing the backing
// file. This mirrors the teacher's blockcache: durability is promised on
// destroy, not on every write.
package blockstore

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/dargueta/tinyfs/bitmap"
	"github.com/dargueta/tinyfs/errors"
)

const (
	// TotalBlocks is the fixed block count of every tinyfs image.
	TotalBlocks = 65536

	// BlockSize is the size of one block, in bytes.
	BlockSize = 512

	// ImageSize is the exact size an on-disk image must be.
	ImageSize = TotalBlocks * BlockSize

	// FreeMapStartBlock is the first block of the trailing free-block bitmap.
	FreeMapStartBlock = 65520

	// FreeMapBlockCount is how many blocks the free-block bitmap occupies.
	FreeMapBlockCount = 16
)

// BlockID is a tagged newtype for a physical block number, preventing
// accidental arithmetic against other kinds of integers (inode numbers,
// byte offsets).
type BlockID uint16

// NoBlock is the sentinel stored in an unallocated pointer slot.
const NoBlock BlockID = 0

// stream is whatever the block store reads its image from and writes it
// back to: a real backing file for production use, or an in-memory
// bytesextra.ReadWriteSeeker in tests. Mirrors the teacher's BlockDevice,
// which also holds a bare io.Seeker and type-asserts to Read/WriteSeeker
// as needed rather than demanding *os.File specifically.
type stream interface {
	io.ReadWriteSeeker
}

// Store is the in-memory image of a tinyfs block device.
type Store struct {
	stream  stream
	closer  io.Closer // nil for streams with nothing to close (in-memory fixtures)
	data    []byte
	dirty   bitmap.Bitmap
	freeMap bitmap.Bitmap
}

// Create makes a brand-new, zero-filled image at path, reserves the trailing
// free-map blocks, and returns a Store ready for use.
func Create(path string) (*Store, errors.DriverError) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.ErrIOFailed.WrapError(err)
	}
	return CreateFromStream(f, f)
}

// CreateFromStream builds a fresh, zero-filled image on top of an
// already-open stream (a real file or an in-memory fixture), reserving the
// trailing free-map blocks. closer may be nil if the stream owns no
// separate resource to release.
func CreateFromStream(s stream, closer io.Closer) (*Store, errors.DriverError) {
	data := make([]byte, ImageSize)
	store := &Store{
		stream: s,
		closer: closer,
		data:   data,
		dirty:  bitmap.New(TotalBlocks),
	}
	store.freeMap = bitmap.Overlay(TotalBlocks, data[FreeMapStartBlock*BlockSize:])

	for i := FreeMapStartBlock; i < TotalBlocks; i++ {
		store.freeMap.Set(i)
		store.dirty.Set(i)
	}

	if werr := store.flushAll(); werr != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, werr
	}

	return store, nil
}

// Open reads an existing image fully into memory and reconstructs the
// free-block bitmap from its trailing blocks. It fails if the file's size
// does not exactly match ImageSize.
func Open(path string) (*Store, errors.DriverError) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.ErrIOFailed.WrapError(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.ErrIOFailed.WrapError(err)
	}
	if info.Size() != ImageSize {
		f.Close()
		return nil, errors.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("image is %d bytes, expected %d", info.Size(), ImageSize))
	}

	return OpenFromStream(f, f)
}

// OpenFromStream reads an already-open, correctly-sized stream fully into
// memory and reconstructs the free-block bitmap from its trailing blocks.
// It does not itself validate the stream's size; callers working from a
// fixed-size fixture (e.g. bytesextra) already guarantee that invariant.
func OpenFromStream(s stream, closer io.Closer) (*Store, errors.DriverError) {
	data := make([]byte, ImageSize)
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, errors.ErrIOFailed.WrapError(err)
	}
	if _, err := io.ReadFull(s, data); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, errors.ErrIOFailed.WrapError(err)
	}

	store := &Store{
		stream: s,
		closer: closer,
		data:   data,
		dirty:  bitmap.New(TotalBlocks),
	}
	store.freeMap = bitmap.Overlay(TotalBlocks, data[FreeMapStartBlock*BlockSize:])

	return store, nil
}

// Destroy flushes every dirty block back to the backing stream, closes it,
// and releases the Store's in-memory resources. Flush and close failures
// are aggregated so both are reported rather than the second masking the
// first.
func (s *Store) Destroy() errors.DriverError {
	var result *multierror.Error

	if err := s.flushAll(); err != nil {
		result = multierror.Append(result, err)
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.data = nil
	s.stream = nil
	s.closer = nil

	if result != nil && result.Len() > 0 {
		return errors.ErrIOFailed.WrapError(result)
	}
	return nil
}

func (s *Store) flushAll() errors.DriverError {
	for id := 0; id < TotalBlocks; id++ {
		if !s.dirty.Test(id) {
			continue
		}
		offset := int64(id) * BlockSize
		if _, err := s.stream.Seek(offset, io.SeekStart); err != nil {
			return errors.ErrIOFailed.WrapError(err)
		}
		if _, err := s.stream.Write(s.data[offset : offset+BlockSize]); err != nil {
			return errors.ErrIOFailed.WrapError(err)
		}
		s.dirty.Reset(id)
	}
	return nil
}

func (s *Store) checkRange(id BlockID) errors.DriverError {
	if uint(id) >= TotalBlocks {
		return errors.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("block id %d out of range [0, %d)", id, TotalBlocks))
	}
	return nil
}

// Allocate finds the lowest clear bit in the free-block bitmap, sets it, and
// returns its id. It fails with ErrNoSpaceOnDevice if the device is full.
func (s *Store) Allocate() (BlockID, errors.DriverError) {
	idx, err := s.freeMap.AllocateFirstFree()
	if err != nil {
		return NoBlock, err
	}
	s.markFreeMapDirty()
	return BlockID(idx), nil
}

// Request atomically marks id as in-use. It fails if the id is out of range
// or already allocated.
func (s *Store) Request(id BlockID) errors.DriverError {
	if err := s.checkRange(id); err != nil {
		return err
	}
	if s.IsAllocated(id) {
		return errors.ErrAlreadyInProgress.WithMessage(
			fmt.Sprintf("block %d already allocated", id))
	}
	s.freeMap.Set(int(id))
	s.markFreeMapDirty()
	return nil
}

// Release clears id's bit in the free-block bitmap.
func (s *Store) Release(id BlockID) errors.DriverError {
	if err := s.checkRange(id); err != nil {
		return err
	}
	s.freeMap.Reset(int(id))
	s.markFreeMapDirty()
	return nil
}

// IsAllocated reports whether id is currently marked in-use.
func (s *Store) IsAllocated(id BlockID) bool {
	return s.freeMap.Test(int(id))
}

// FreeBlockCount returns the number of blocks not currently allocated.
func (s *Store) FreeBlockCount() int {
	return TotalBlocks - s.freeMap.Popcount()
}

func (s *Store) markFreeMapDirty() {
	for i := FreeMapStartBlock; i < TotalBlocks; i++ {
		s.dirty.Set(i)
	}
}

// Read copies the contents of block id into dst, which must be exactly
// BlockSize bytes.
func (s *Store) Read(id BlockID, dst []byte) errors.DriverError {
	if err := s.checkRange(id); err != nil {
		return err
	}
	if len(dst) != BlockSize {
		return errors.ErrInvalidArgument.WithMessage("destination buffer must be exactly one block")
	}
	offset := int(id) * BlockSize
	copy(dst, s.data[offset:offset+BlockSize])
	return nil
}

// Write copies src into block id. src must be exactly BlockSize bytes.
func (s *Store) Write(id BlockID, src []byte) errors.DriverError {
	if err := s.checkRange(id); err != nil {
		return err
	}
	if len(src) != BlockSize {
		return errors.ErrInvalidArgument.WithMessage("source buffer must be exactly one block")
	}
	offset := int(id) * BlockSize
	copy(s.data[offset:offset+BlockSize], src)
	s.dirty.Set(int(id))
	return nil
}
