package fsys

import (
	"github.com/dargueta/tinyfs/layout"
)

// DirEntry is the public, decoded view of one occupied directory slot,
// returned by ReadDir.
type DirEntry struct {
	Name        string
	InodeNumber Inumber
	IsDirectory bool
}

// findEntry linearly scans dir for an occupied slot named name.
func findEntry(dir *layout.DirectoryBlock, name string) (int, *layout.RawDirEntry, bool) {
	for i := range dir.Entries {
		entry := &dir.Entries[i]
		if !entry.IsFree() && entry.NameString() == name {
			return i, entry, true
		}
	}
	return -1, nil, false
}

// findFreeSlot returns the lowest free slot in dir. It also reports
// whether name already occupies some slot, so callers can do create's
// uniqueness check and free-slot search in one scan.
func findFreeSlot(dir *layout.DirectoryBlock, name string) (slot int, hasSlot bool, nameTaken bool) {
	slot = -1
	for i := range dir.Entries {
		entry := &dir.Entries[i]
		if entry.IsFree() {
			if slot < 0 {
				slot = i
				hasSlot = true
			}
			continue
		}
		if entry.NameString() == name {
			nameTaken = true
		}
	}
	return slot, hasSlot, nameTaken
}

// listEntries returns every occupied slot in dir, in slot order.
func listEntries(dir *layout.DirectoryBlock) []DirEntry {
	var out []DirEntry
	for i := range dir.Entries {
		entry := &dir.Entries[i]
		if entry.IsFree() {
			continue
		}
		out = append(out, DirEntry{
			Name:        entry.NameString(),
			InodeNumber: Inumber(entry.InodeNumber),
			IsDirectory: entry.FileType == layout.FileTypeDirectory,
		})
	}
	return out
}

// isEmpty reports whether dir has no occupied slots.
func isEmpty(dir *layout.DirectoryBlock) bool {
	for i := range dir.Entries {
		if !dir.Entries[i].IsFree() {
			return false
		}
	}
	return true
}
