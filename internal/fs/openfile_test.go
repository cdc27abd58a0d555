package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileReadWriteAtSpansSectors(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 16)
	bitmap := NewBitmap(disk.NumSectors())

	header := NewFileHeader(geom)
	ok, err := header.Allocate(bitmap, disk, 200)
	require.NoError(t, err)
	require.True(t, ok)

	of := newOpenFile(header, 0, disk, geom)

	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := of.WriteAt(payload, 0)
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	readBack := make([]byte, 200)
	n, err = of.ReadAt(readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, payload, readBack)
}

func TestOpenFilePartialSectorWritePreservesNeighbors(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 16)
	bitmap := NewBitmap(disk.NumSectors())

	header := NewFileHeader(geom)
	ok, err := header.Allocate(bitmap, disk, geom.SectorSize)
	require.NoError(t, err)
	require.True(t, ok)
	of := newOpenFile(header, 0, disk, geom)

	full := make([]byte, geom.SectorSize)
	for i := range full {
		full[i] = 0xAA
	}
	_, err = of.WriteAt(full, 0)
	require.NoError(t, err)

	_, err = of.WriteAt([]byte{0x01, 0x02}, 10)
	require.NoError(t, err)

	readBack := make([]byte, geom.SectorSize)
	_, err = of.ReadAt(readBack, 0)
	require.NoError(t, err)

	assert.Equal(t, byte(0xAA), readBack[9])
	assert.Equal(t, byte(0x01), readBack[10])
	assert.Equal(t, byte(0x02), readBack[11])
	assert.Equal(t, byte(0xAA), readBack[12])
}

func TestOpenFileSeekReadWriteAdvancesPosition(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 16)
	bitmap := NewBitmap(disk.NumSectors())

	header := NewFileHeader(geom)
	header.Allocate(bitmap, disk, 20)
	of := newOpenFile(header, 0, disk, geom)

	of.Write([]byte("hello"))
	of.Write([]byte("world"))

	of.Seek(0)
	buf := make([]byte, 10)
	n, err := of.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "helloworld", string(buf))
}

func TestOpenFileSector(t *testing.T) {
	geom := testGeometry()
	disk := NewSimDisk(geom.SectorSize, 16)
	bitmap := NewBitmap(disk.NumSectors())
	header := NewFileHeader(geom)
	header.Allocate(bitmap, disk, 20)

	of := newOpenFile(header, 7, disk, geom)
	assert.EqualValues(t, 7, of.Sector())
	assert.Equal(t, 20, of.Length())
}
