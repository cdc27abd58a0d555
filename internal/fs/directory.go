package fs

import (
	"encoding/binary"
	"fmt"
)

// DirectoryEntry names one file or sub-directory within a Directory.
type DirectoryEntry struct {
	InUse  bool
	IsDir  bool
	Name   string
	Sector int32
}

// Directory is a fixed-capacity entry table persisted as the data of a
// file. Add/AddDir reject duplicate names and signal failure when full;
// FindDir matches only sub-directories, Find matches either.
type Directory struct {
	entries    []DirectoryEntry
	nameMaxLen int
}

// NewDirectory creates an empty directory with room for capacity
// entries, each name at most nameMaxLen bytes.
func NewDirectory(capacity, nameMaxLen int) *Directory {
	return &Directory{
		entries:    make([]DirectoryEntry, capacity),
		nameMaxLen: nameMaxLen,
	}
}

// FindIndex returns the slot of name, matching any entry, or -1.
func (d *Directory) FindIndex(name string) int {
	for i, e := range d.entries {
		if e.InUse && e.Name == name {
			return i
		}
	}
	return -1
}

// FindDirIndex returns the slot of name, matching only sub-directories,
// or -1.
func (d *Directory) FindDirIndex(name string) int {
	for i, e := range d.entries {
		if e.InUse && e.IsDir && e.Name == name {
			return i
		}
	}
	return -1
}

// Find returns the sector of name, matching any entry.
func (d *Directory) Find(name string) (int32, bool) {
	i := d.FindIndex(name)
	if i < 0 {
		return 0, false
	}
	return d.entries[i].Sector, true
}

// FindDir returns the sector of name, matching only sub-directories.
func (d *Directory) FindDir(name string) (int32, bool) {
	i := d.FindDirIndex(name)
	if i < 0 {
		return 0, false
	}
	return d.entries[i].Sector, true
}

func (d *Directory) add(name string, sector int32, isDir bool) bool {
	if len(name) > d.nameMaxLen {
		return false
	}
	if d.FindIndex(name) >= 0 {
		return false
	}
	for i := range d.entries {
		if !d.entries[i].InUse {
			d.entries[i] = DirectoryEntry{InUse: true, IsDir: isDir, Name: name, Sector: sector}
			return true
		}
	}
	return false
}

// Add inserts a file entry. Rejects duplicates and signals failure when
// the table is full.
func (d *Directory) Add(name string, sector int32) bool { return d.add(name, sector, false) }

// AddDir inserts a sub-directory entry.
func (d *Directory) AddDir(name string, sector int32) bool { return d.add(name, sector, true) }

// Remove clears the entry named name, reporting whether it existed.
func (d *Directory) Remove(name string) bool {
	i := d.FindIndex(name)
	if i < 0 {
		return false
	}
	d.entries[i] = DirectoryEntry{}
	return true
}

// List returns every in-use entry, in slot order.
func (d *Directory) List() []DirectoryEntry {
	out := make([]DirectoryEntry, 0, len(d.entries))
	for _, e := range d.entries {
		if e.InUse {
			out = append(out, e)
		}
	}
	return out
}

// entryWireSize is the on-disk byte size of one DirectoryEntry: an
// in-use byte, an is-directory byte, a fixed-width name field, and a
// sector number.
func (d *Directory) entryWireSize() int {
	return 2 + d.nameMaxLen + 4
}

// FetchFrom decodes this directory's entries from of.
func (d *Directory) FetchFrom(of *OpenFile) error {
	size := d.entryWireSize()
	buf := make([]byte, size*len(d.entries))
	if _, err := of.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("fetching directory: %w", err)
	}

	for i := range d.entries {
		off := i * size
		inUse := buf[off] != 0
		isDir := buf[off+1] != 0
		nameBytes := buf[off+2 : off+2+d.nameMaxLen]
		name := decodeFixedName(nameBytes)
		sector := int32(binary.LittleEndian.Uint32(buf[off+2+d.nameMaxLen : off+size]))
		d.entries[i] = DirectoryEntry{InUse: inUse, IsDir: isDir, Name: name, Sector: sector}
	}
	return nil
}

// WriteBack encodes this directory's entries into of.
func (d *Directory) WriteBack(of *OpenFile) error {
	size := d.entryWireSize()
	buf := make([]byte, size*len(d.entries))

	for i, e := range d.entries {
		off := i * size
		if e.InUse {
			buf[off] = 1
		}
		if e.IsDir {
			buf[off+1] = 1
		}
		encodeFixedName(buf[off+2:off+2+d.nameMaxLen], e.Name)
		binary.LittleEndian.PutUint32(buf[off+2+d.nameMaxLen:off+size], uint32(e.Sector))
	}

	if _, err := of.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("writing back directory: %w", err)
	}
	return nil
}

func encodeFixedName(dst []byte, name string) {
	n := copy(dst, name)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func decodeFixedName(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// DirectoryFileSize is the number of bytes a directory of this geometry
// occupies as file data, used when CreateSubDir sizes the new header.
func DirectoryFileSize(geom Geometry) int {
	d := NewDirectory(geom.NumDirEntries, geom.FileNameMaxLen)
	return d.entryWireSize() * geom.NumDirEntries
}
