package fs

import "fmt"

// OpenFile holds a file's in-memory header plus a byte-seek position.
// Its lifetime is independent of disk state: closing one flushes nothing
// since a header is immutable once created. It also satisfies a narrow
// ReadAt contract internal/memory depends on, so an executable image can
// be loaded straight out of the file system without that package
// importing this one.
type OpenFile struct {
	header *FileHeader
	sector int32
	disk   Disk
	geom   Geometry
	pos    int64
}

func newOpenFile(header *FileHeader, sector int32, disk Disk, geom Geometry) *OpenFile {
	return &OpenFile{header: header, sector: sector, disk: disk, geom: geom}
}

// Sector is the disk-sector number of this file's header -- the id the
// system-call surface hands back from Open and expects on Read/Write/Close.
func (f *OpenFile) Sector() int32 { return f.sector }

// Length reports the file's logical byte length.
func (f *OpenFile) Length() int { return f.header.FileLength() }

// ReadAt reads len(p) bytes starting at byte offset off, spanning
// sectors as needed. Satisfies the same shape as io.ReaderAt.
func (f *OpenFile) ReadAt(p []byte, off int64) (int, error) {
	read := 0
	sectorSize := f.geom.SectorSize

	for read < len(p) {
		offset := int(off) + read
		if offset >= f.header.NumBytes {
			break
		}

		sector, err := f.header.ByteToSector(f.disk, offset)
		if err != nil {
			return read, err
		}

		sectorOffset := offset % sectorSize
		chunk := len(p) - read
		if chunk > sectorSize-sectorOffset {
			chunk = sectorSize - sectorOffset
		}
		if offset+chunk > f.header.NumBytes {
			chunk = f.header.NumBytes - offset
		}

		buf := make([]byte, sectorSize)
		if err := f.disk.ReadSector(sector, buf); err != nil {
			return read, fmt.Errorf("reading file data: %w", err)
		}
		copy(p[read:read+chunk], buf[sectorOffset:sectorOffset+chunk])
		read += chunk
	}
	return read, nil
}

// WriteAt writes len(p) bytes starting at byte offset off, read-modifying
// each sector it touches since writes needn't be sector-aligned.
func (f *OpenFile) WriteAt(p []byte, off int64) (int, error) {
	written := 0
	sectorSize := f.geom.SectorSize

	for written < len(p) {
		offset := int(off) + written
		if offset >= f.header.NumBytes {
			break
		}

		sector, err := f.header.ByteToSector(f.disk, offset)
		if err != nil {
			return written, err
		}

		sectorOffset := offset % sectorSize
		chunk := len(p) - written
		if chunk > sectorSize-sectorOffset {
			chunk = sectorSize - sectorOffset
		}
		if offset+chunk > f.header.NumBytes {
			chunk = f.header.NumBytes - offset
		}

		buf := make([]byte, sectorSize)
		if err := f.disk.ReadSector(sector, buf); err != nil {
			return written, fmt.Errorf("reading file data for partial write: %w", err)
		}
		copy(buf[sectorOffset:sectorOffset+chunk], p[written:written+chunk])
		if err := f.disk.WriteSector(sector, buf); err != nil {
			return written, fmt.Errorf("writing file data: %w", err)
		}
		written += chunk
	}
	return written, nil
}

// Read reads from the current seek position and advances it, for the
// syscall-style Read(buf, size, id) surface.
func (f *OpenFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Write writes at the current seek position and advances it.
func (f *OpenFile) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Seek repositions the read/write cursor.
func (f *OpenFile) Seek(pos int64) { f.pos = pos }
