package fs

import (
	"encoding/binary"
	"fmt"

	"github.com/huiyuiui/NachOS/internal/klog"
)

// Level records a header's indirection depth explicitly rather than
// leaving every reader to re-derive it from NumBytes at every boundary
// value -- the fragile inference the original source relies on.
type Level int

const (
	LevelLeaf Level = iota // entries are raw data sectors
	LevelIndirect1         // entries point to LevelLeaf child headers
	LevelIndirect2         // entries point to LevelIndirect1 child headers
	LevelIndirect3         // entries point to LevelIndirect2 child headers
)

// FileHeader is the multi-level index inode: NumBytes plus up to
// NumDirect entries that are either raw data sectors (a leaf) or sectors
// holding child FileHeaders (an indirect header). Level is computed once,
// by Allocate or FetchFrom, through levelForSize -- never re-derived
// piecemeal elsewhere, so there is exactly one place a boundary-value bug
// could hide.
type FileHeader struct {
	geom        Geometry
	NumBytes    int
	NumSectors  int
	Level       Level
	DataSectors []int32
}

// NewFileHeader creates an empty header sized for geom's NumDirect.
func NewFileHeader(geom Geometry) *FileHeader {
	return &FileHeader{
		geom:        geom,
		DataSectors: make([]int32, geom.NumDirect),
	}
}

func levelForSize(geom Geometry, numBytes int) Level {
	switch {
	case numBytes <= geom.BytesInLevel1():
		return LevelLeaf
	case numBytes <= geom.BytesInLevel2():
		return LevelIndirect1
	case numBytes <= geom.BytesInLevel3():
		return LevelIndirect2
	default:
		return LevelIndirect3
	}
}

// childCapacity is the byte budget of one child header at this header's
// level -- e.g. an Indirect1 header's children are leaves, so their
// capacity is BytesInLevel1.
func (h *FileHeader) childCapacity() int {
	switch h.Level {
	case LevelIndirect1:
		return h.geom.BytesInLevel1()
	case LevelIndirect2:
		return h.geom.BytesInLevel2()
	case LevelIndirect3:
		return h.geom.BytesInLevel3()
	default:
		panic("childCapacity called on a leaf header")
	}
}

// Allocate claims sectors for a file of fileSize bytes, selecting an
// indirection level by size. Pre-checks the leaf data-sector count
// against bitmap.NumClear() and returns false without allocating
// anything if there isn't room.
func (h *FileHeader) Allocate(bitmap *Bitmap, disk Disk, fileSize int) (bool, error) {
	needed := divRoundUp(fileSize, h.geom.SectorSize)
	if needed > bitmap.NumClear() {
		klog.ErrorLog.Error("insufficient free sectors", "needed", needed, "free", bitmap.NumClear())
		return false, nil
	}
	return h.allocate(bitmap, disk, fileSize)
}

func (h *FileHeader) allocate(bitmap *Bitmap, disk Disk, fileSize int) (bool, error) {
	h.NumBytes = fileSize
	h.Level = levelForSize(h.geom, fileSize)

	if h.Level == LevelLeaf {
		numSectors := divRoundUp(fileSize, h.geom.SectorSize)
		for i := 0; i < numSectors; i++ {
			sector, ok := bitmap.FindAndSet()
			if !ok {
				return false, nil
			}
			h.DataSectors[i] = int32(sector)
		}
		h.NumSectors = numSectors
		return true, nil
	}

	childCap := h.childCapacity()
	remaining := fileSize
	numChildren := divRoundUp(fileSize, childCap)
	totalSectors := 0

	for i := 0; i < numChildren; i++ {
		childSize := remaining
		if childSize > childCap {
			childSize = childCap
		}

		sector, ok := bitmap.FindAndSet()
		if !ok {
			return false, nil
		}

		child := NewFileHeader(h.geom)
		ok, err := child.allocate(bitmap, disk, childSize)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if err := child.WriteBack(disk, sector); err != nil {
			return false, err
		}

		h.DataSectors[i] = int32(sector)
		totalSectors += 1 + child.NumSectors
		remaining -= childSize
	}

	h.NumSectors = totalSectors
	return true, nil
}

// Deallocate frees every leaf data sector and every indirect sector this
// header's subtree reaches, clearing indirect blocks too (the source
// only clears leaves, leaking indirect sectors).
func (h *FileHeader) Deallocate(bitmap *Bitmap, disk Disk) error {
	if h.Level == LevelLeaf {
		numSectors := divRoundUp(h.NumBytes, h.geom.SectorSize)
		for i := 0; i < numSectors; i++ {
			bitmap.Clear(int(h.DataSectors[i]))
		}
		return nil
	}

	childCap := h.childCapacity()
	remaining := h.NumBytes
	numChildren := divRoundUp(h.NumBytes, childCap)

	for i := 0; i < numChildren; i++ {
		childSize := remaining
		if childSize > childCap {
			childSize = childCap
		}

		child := NewFileHeader(h.geom)
		if err := child.FetchFrom(disk, int(h.DataSectors[i])); err != nil {
			return err
		}
		if err := child.Deallocate(bitmap, disk); err != nil {
			return err
		}
		bitmap.Clear(int(h.DataSectors[i]))

		remaining -= childSize
	}
	return nil
}

// ByteToSector recurses through levels until it reaches a leaf,
// returning the data sector holding the byte at offset.
func (h *FileHeader) ByteToSector(disk Disk, offset int) (int, error) {
	if offset < 0 || offset >= h.NumBytes {
		return 0, fmt.Errorf("offset %d out of range [0,%d)", offset, h.NumBytes)
	}
	if h.Level == LevelLeaf {
		return int(h.DataSectors[offset/h.geom.SectorSize]), nil
	}

	childCap := h.childCapacity()
	idx := offset / childCap
	childOffset := offset % childCap

	child := NewFileHeader(h.geom)
	if err := child.FetchFrom(disk, int(h.DataSectors[idx])); err != nil {
		return 0, err
	}
	return child.ByteToSector(disk, childOffset)
}

// FileLength returns the file's logical byte length.
func (h *FileHeader) FileLength() int { return h.NumBytes }

// CountHeader returns the total number of sectors spent on FileHeader
// structures reachable from this one -- this header plus every child
// header, recursively. It does not count data sectors.
func (h *FileHeader) CountHeader(disk Disk) (int, error) {
	if h.Level == LevelLeaf {
		return 1, nil
	}

	childCap := h.childCapacity()
	remaining := h.NumBytes
	numChildren := divRoundUp(h.NumBytes, childCap)
	count := 1

	for i := 0; i < numChildren; i++ {
		childSize := remaining
		if childSize > childCap {
			childSize = childCap
		}

		child := NewFileHeader(h.geom)
		if err := child.FetchFrom(disk, int(h.DataSectors[i])); err != nil {
			return 0, err
		}
		c, err := child.CountHeader(disk)
		if err != nil {
			return 0, err
		}
		count += c
		remaining -= childSize
	}
	return count, nil
}

// headerWireSize is the on-disk byte size of a FileHeader: two int32
// fields plus NumDirect int32 slots, sized to fit in exactly one sector
// by the caller's choice of NumDirect.
func (h *FileHeader) headerWireSize() int {
	return 4 + 4 + 4*h.geom.NumDirect
}

// FetchFrom reads this header's fields from the given disk sector and
// recomputes its indirection level from the decoded NumBytes.
func (h *FileHeader) FetchFrom(disk Disk, sector int) error {
	buf := make([]byte, disk.SectorSize())
	if err := disk.ReadSector(sector, buf); err != nil {
		return fmt.Errorf("fetching file header from sector %d: %w", sector, err)
	}

	h.NumBytes = int(int32(binary.LittleEndian.Uint32(buf[0:4])))
	h.NumSectors = int(int32(binary.LittleEndian.Uint32(buf[4:8])))
	h.DataSectors = make([]int32, h.geom.NumDirect)
	for i := 0; i < h.geom.NumDirect; i++ {
		off := 8 + i*4
		h.DataSectors[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	h.Level = levelForSize(h.geom, h.NumBytes)
	return nil
}

// WriteBack encodes this header's fields into the given disk sector.
func (h *FileHeader) WriteBack(disk Disk, sector int) error {
	buf := make([]byte, disk.SectorSize())
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(h.NumBytes)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(h.NumSectors)))
	for i, s := range h.DataSectors {
		off := 8 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(s))
	}
	if err := disk.WriteSector(sector, buf); err != nil {
		return fmt.Errorf("writing file header to sector %d: %w", sector, err)
	}
	return nil
}
