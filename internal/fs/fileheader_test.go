package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry() Geometry {
	return Geometry{SectorSize: 64, NumDirect: 4, NumDirEntries: 8, FileNameMaxLen: 9}
}

func TestLevelForSizeBoundaries(t *testing.T) {
	geom := testGeometry()
	assert.Equal(t, LevelLeaf, levelForSize(geom, geom.BytesInLevel1()))
	assert.Equal(t, LevelIndirect1, levelForSize(geom, geom.BytesInLevel1()+1))
	assert.Equal(t, LevelIndirect1, levelForSize(geom, geom.BytesInLevel2()))
	assert.Equal(t, LevelIndirect2, levelForSize(geom, geom.BytesInLevel2()+1))
}

func TestFileHeaderAllocateLeaf(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 64)
	bitmap := NewBitmap(disk.NumSectors())

	h := NewFileHeader(geom)
	ok, err := h.Allocate(bitmap, disk, 100)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, LevelLeaf, h.Level)
	assert.Equal(t, 2, h.NumSectors) // ceil(100/64)
	assert.Equal(t, 64-2, bitmap.NumClear())
}

func TestFileHeaderAllocateIndirect(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 64)
	bitmap := NewBitmap(disk.NumSectors())

	h := NewFileHeader(geom)
	size := geom.BytesInLevel1() + 10 // forces one level of indirection
	ok, err := h.Allocate(bitmap, disk, size)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, LevelIndirect1, h.Level)

	sector, err := h.ByteToSector(disk, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sector, 0)

	last, err := h.ByteToSector(disk, size-1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, last, 0)
}

func TestFileHeaderAllocateInsufficientSpace(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 4)
	bitmap := NewBitmap(disk.NumSectors())

	h := NewFileHeader(geom)
	ok, err := h.Allocate(bitmap, disk, 1000)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, bitmap.NumClear(), "a failed allocate must not touch the bitmap")
}

func TestFileHeaderDeallocateClearsIndirectSectorsToo(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 64)
	bitmap := NewBitmap(disk.NumSectors())

	h := NewFileHeader(geom)
	size := geom.BytesInLevel1() + 10
	ok, err := h.Allocate(bitmap, disk, size)
	require.NoError(t, err)
	require.True(t, ok)

	before := bitmap.NumClear()
	require.NoError(t, h.Deallocate(bitmap, disk))
	after := bitmap.NumClear()

	assert.Greater(t, after, before, "deallocate must free both data and indirect sectors")
	assert.Equal(t, 64, after, "every sector this header's subtree touched must end up free")
}

func TestFileHeaderCountHeader(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 64)
	bitmap := NewBitmap(disk.NumSectors())

	leaf := NewFileHeader(geom)
	ok, err := leaf.Allocate(bitmap, disk, 50)
	require.NoError(t, err)
	require.True(t, ok)
	count, err := leaf.CountHeader(disk)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	indirect := NewFileHeader(geom)
	ok, err = indirect.Allocate(bitmap, disk, geom.BytesInLevel1()+10)
	require.NoError(t, err)
	require.True(t, ok)
	count, err = indirect.CountHeader(disk)
	require.NoError(t, err)
	assert.Equal(t, 3, count) // itself + 2 leaf children (ceil((256+10)/256))
}

func TestFileHeaderFetchWriteBackRoundTrip(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 64)
	bitmap := NewBitmap(disk.NumSectors())

	h := NewFileHeader(geom)
	ok, err := h.Allocate(bitmap, disk, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.WriteBack(disk, 10))

	loaded := NewFileHeader(geom)
	require.NoError(t, loaded.FetchFrom(disk, 10))
	assert.Equal(t, h.NumBytes, loaded.NumBytes)
	assert.Equal(t, h.NumSectors, loaded.NumSectors)
	assert.Equal(t, h.Level, loaded.Level)
	assert.Equal(t, h.DataSectors, loaded.DataSectors)
}

func TestFileHeaderByteToSectorOutOfRange(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 64)
	bitmap := NewBitmap(disk.NumSectors())

	h := NewFileHeader(geom)
	h.Allocate(bitmap, disk, 50)

	_, err := h.ByteToSector(disk, 1000)
	assert.Error(t, err)
}
