package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryAddFindRemove(t *testing.T) {
	d := NewDirectory(4, 9)

	assert.True(t, d.Add("hello.txt", 5))
	assert.True(t, d.AddDir("sub", 6))

	sector, ok := d.Find("hello.txt")
	assert.True(t, ok)
	assert.EqualValues(t, 5, sector)

	_, ok = d.FindDir("hello.txt")
	assert.False(t, ok, "FindDir must not match a plain file")

	sector, ok = d.FindDir("sub")
	assert.True(t, ok)
	assert.EqualValues(t, 6, sector)

	assert.True(t, d.Remove("hello.txt"))
	_, ok = d.Find("hello.txt")
	assert.False(t, ok)
}

func TestDirectoryRejectsDuplicateNames(t *testing.T) {
	d := NewDirectory(4, 9)
	require.True(t, d.Add("a", 1))
	assert.False(t, d.Add("a", 2))
}

func TestDirectoryRejectsNameTooLong(t *testing.T) {
	d := NewDirectory(4, 4)
	assert.False(t, d.Add("toolongname", 1))
}

func TestDirectoryFullReturnsFalse(t *testing.T) {
	d := NewDirectory(2, 9)
	require.True(t, d.Add("a", 1))
	require.True(t, d.Add("b", 2))
	assert.False(t, d.Add("c", 3))
}

func TestDirectoryListOnlyInUseEntries(t *testing.T) {
	d := NewDirectory(4, 9)
	d.Add("a", 1)
	d.Add("b", 2)
	d.Remove("a")

	entries := d.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
}

func TestDirectoryFetchWriteBackRoundTrip(t *testing.T) {
	geom := Geometry{SectorSize: 64, NumDirect: 4, NumDirEntries: 8, FileNameMaxLen: 9}
	disk := NewSimDisk(geom.SectorSize, 16)
	bitmap := NewBitmap(disk.NumSectors())
	bitmap.FindAndSet() // sector 0 holds the directory file's own header

	header := NewFileHeader(geom)
	ok, err := header.Allocate(bitmap, disk, DirectoryFileSize(geom))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, header.WriteBack(disk, 0))

	of := newOpenFile(header, 0, disk, geom)
	d := NewDirectory(geom.NumDirEntries, geom.FileNameMaxLen)
	d.Add("one", 11)
	d.AddDir("two", 12)
	require.NoError(t, d.WriteBack(of))

	loadedHeader := NewFileHeader(geom)
	require.NoError(t, loadedHeader.FetchFrom(disk, 0))
	loaded := NewDirectory(geom.NumDirEntries, geom.FileNameMaxLen)
	require.NoError(t, loaded.FetchFrom(newOpenFile(loadedHeader, 0, disk, geom)))

	entries := loaded.List()
	require.Len(t, entries, 2)

	byName := map[string]DirectoryEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.EqualValues(t, 11, byName["one"].Sector)
	assert.False(t, byName["one"].IsDir)
	assert.EqualValues(t, 12, byName["two"].Sector)
	assert.True(t, byName["two"].IsDir)
}
