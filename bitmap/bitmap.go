// Package bitmap provides a fixed-size bit vector, used by the block store
// for its free-block map and by the on-disk superblock for its free-inode
// map. It is a thin shell around github.com/boljen/go-bitmap, adding the
// "overlay an existing buffer" and "find the first free bit" operations the
// rest of tinyfs needs.
package bitmap

import (
	"github.com/boljen/go-bitmap"

	"github.com/dargueta/tinyfs/errors"
)

// Bitmap is a bit vector over a byte slice it either owns or shares with
// another structure (see Overlay).
type Bitmap struct {
	bits  bitmap.Bitmap
	nBits int
}

// New allocates a new, fully-cleared Bitmap with room for nBits bits.
func New(nBits int) Bitmap {
	return Bitmap{
		bits:  bitmap.New(nBits),
		nBits: nBits,
	}
}

// Overlay wraps an existing byte slice as a Bitmap. Mutations made through
// the returned Bitmap are visible in buf, and vice versa: this is how the
// superblock's inode free-map lives inside the superblock's own raw bytes
// rather than as separately-owned storage.
//
// buf must be at least ceil(nBits/8) bytes long.
func Overlay(nBits int, buf []byte) Bitmap {
	needed := (nBits + 7) / 8
	if len(buf) < needed {
		panic("bitmap: overlay buffer too small for requested bit count")
	}
	return Bitmap{
		bits:  bitmap.Bitmap(buf[:needed]),
		nBits: nBits,
	}
}

// Len returns the number of addressable bits.
func (b Bitmap) Len() int {
	return b.nBits
}

// Set marks bit i as in-use.
func (b Bitmap) Set(i int) {
	b.checkBounds(i)
	b.bits.Set(i, true)
}

// Reset marks bit i as free.
func (b Bitmap) Reset(i int) {
	b.checkBounds(i)
	b.bits.Set(i, false)
}

// Test reports whether bit i is set.
func (b Bitmap) Test(i int) bool {
	b.checkBounds(i)
	return b.bits.Get(i)
}

func (b Bitmap) checkBounds(i int) {
	if i < 0 || i >= b.Len() {
		panic("bitmap: index out of range")
	}
}

// FirstFreeZero returns the lowest index whose bit is clear. The second
// return value is false if every bit is set.
func (b Bitmap) FirstFreeZero() (int, bool) {
	for i := 0; i < b.Len(); i++ {
		if !b.bits.Get(i) {
			return i, true
		}
	}
	return 0, false
}

// Popcount returns the number of set bits.
func (b Bitmap) Popcount() int {
	count := 0
	for i := 0; i < b.Len(); i++ {
		if b.bits.Get(i) {
			count++
		}
	}
	return count
}

// Data returns the underlying byte slice backing this bitmap, for callers
// that need to hand the raw bits to something else (fsys copies the inode
// bitmap's bytes into a fresh RawSuperblock this way before encoding it).
func (b Bitmap) Data() []byte {
	return b.bits.Data(false)
}

// AllocateFirstFree finds the first clear bit, sets it, and returns its
// index. It fails with errors.ErrNoSpaceOnDevice if the bitmap is full.
func (b Bitmap) AllocateFirstFree() (int, errors.DriverError) {
	idx, ok := b.FirstFreeZero()
	if !ok {
		return 0, errors.ErrNoSpaceOnDevice.WithMessage("bitmap exhausted")
	}
	b.Set(idx)
	return idx, nil
}
