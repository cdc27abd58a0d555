// Package fs implements the persistent, hierarchical file system: a
// free-sector bitmap, multi-level-index file headers, directories, and
// the file system that resolves paths over them and drives a simulated
// synchronous disk.
package fs

import "fmt"

// Disk is the synchronous block-device contract the file system is
// built on. The real disk's transfer timing and interrupt-driven
// completion are out of scope here; this package only needs the two
// operations below plus its fixed geometry.
type Disk interface {
	ReadSector(sector int, buf []byte) error
	WriteSector(sector int, buf []byte) error
	SectorSize() int
	NumSectors() int
}

// SimDisk is an in-memory stand-in for the real synchronous disk, good
// enough to drive the file system and its tests without real I/O.
type SimDisk struct {
	sectorSize int
	sectors    [][]byte
}

// NewSimDisk allocates numSectors sectors of sectorSize bytes each, all
// zeroed.
func NewSimDisk(sectorSize, numSectors int) *SimDisk {
	sectors := make([][]byte, numSectors)
	for i := range sectors {
		sectors[i] = make([]byte, sectorSize)
	}
	return &SimDisk{sectorSize: sectorSize, sectors: sectors}
}

func (d *SimDisk) SectorSize() int { return d.sectorSize }
func (d *SimDisk) NumSectors() int { return len(d.sectors) }

func (d *SimDisk) ReadSector(sector int, buf []byte) error {
	if sector < 0 || sector >= len(d.sectors) {
		return fmt.Errorf("sector %d out of range [0,%d)", sector, len(d.sectors))
	}
	copy(buf, d.sectors[sector])
	return nil
}

func (d *SimDisk) WriteSector(sector int, buf []byte) error {
	if sector < 0 || sector >= len(d.sectors) {
		return fmt.Errorf("sector %d out of range [0,%d)", sector, len(d.sectors))
	}
	copy(d.sectors[sector], buf)
	return nil
}
