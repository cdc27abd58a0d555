package fs

import (
	"fmt"
	"io"
	"strings"

	"github.com/rodaine/table"

	"github.com/huiyuiui/NachOS/internal/klog"
)

const (
	freeMapSector = 0
	rootSector    = 1
)

// FileSystem resolves paths over a directory tree rooted at rootSector,
// allocates and frees sectors through a free-map bitmap also backed by a
// file, and keeps one table of open files keyed by the disk sector of
// their header -- unlike the single shared handle this design is commonly
// simplified to, each distinct open file stays independently
// readable/writable until its id is closed. The table is shared by every
// caller of this FileSystem: opening the same file again replaces its
// entry, so both opens use the same id.
type FileSystem struct {
	disk Disk
	geom Geometry

	bitmap  *Bitmap
	rootDir *Directory

	openFiles map[int32]*OpenFile
}

// Format lays down a fresh file system: marks the two well-known sectors
// used, allocates the free-map and root-directory files, and writes both
// back along with an empty root directory.
func Format(disk Disk, geom Geometry) (*FileSystem, error) {
	klog.InfoLog.Info("formatting file system", "sectors", disk.NumSectors())

	fsys := &FileSystem{
		disk:      disk,
		geom:      geom,
		bitmap:    NewBitmap(disk.NumSectors()),
		openFiles: make(map[int32]*OpenFile),
	}

	fsys.bitmap.FindAndSet() // sector 0: free-map file header
	fsys.bitmap.FindAndSet() // sector 1: root directory file header

	mapHeader := NewFileHeader(geom)
	if ok, err := mapHeader.Allocate(fsys.bitmap, disk, divRoundUp(disk.NumSectors(), 8)); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("not enough free sectors to format the free-map file")
	}

	rootHeader := NewFileHeader(geom)
	if ok, err := rootHeader.Allocate(fsys.bitmap, disk, DirectoryFileSize(geom)); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("not enough free sectors to format the root directory file")
	}

	if err := mapHeader.WriteBack(disk, freeMapSector); err != nil {
		return nil, err
	}
	if err := rootHeader.WriteBack(disk, rootSector); err != nil {
		return nil, err
	}

	fsys.rootDir = NewDirectory(geom.NumDirEntries, geom.FileNameMaxLen)
	if err := fsys.rootDir.WriteBack(newOpenFile(rootHeader, rootSector, disk, geom)); err != nil {
		return nil, err
	}
	if err := fsys.bitmap.WriteBack(newOpenFile(mapHeader, freeMapSector, disk, geom)); err != nil {
		return nil, err
	}

	klog.InfoLog.Info("file system formatted")
	return fsys, nil
}

// Open loads an already-formatted file system: fetches the free-map and
// root-directory headers and reads their payloads into memory.
func Open(disk Disk, geom Geometry) (*FileSystem, error) {
	fsys := &FileSystem{
		disk:      disk,
		geom:      geom,
		openFiles: make(map[int32]*OpenFile),
	}

	mapHeader := NewFileHeader(geom)
	if err := mapHeader.FetchFrom(disk, freeMapSector); err != nil {
		return nil, err
	}
	fsys.bitmap = NewBitmap(disk.NumSectors())
	if err := fsys.bitmap.ReadFrom(newOpenFile(mapHeader, freeMapSector, disk, geom)); err != nil {
		return nil, err
	}

	rootHeader := NewFileHeader(geom)
	if err := rootHeader.FetchFrom(disk, rootSector); err != nil {
		return nil, err
	}
	fsys.rootDir = NewDirectory(geom.NumDirEntries, geom.FileNameMaxLen)
	if err := fsys.rootDir.FetchFrom(newOpenFile(rootHeader, rootSector, disk, geom)); err != nil {
		return nil, err
	}

	return fsys, nil
}

func splitPath(path string) []string {
	var tokens []string
	for _, t := range strings.Split(path, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// resolved is the outcome of walking a path down to its terminal token:
// the directory that should be the write-back target for any mutation,
// the sector that directory lives at, and the name still to resolve
// within it.
type resolved struct {
	dir    *Directory
	sector int32
	name   string
}

// resolve splits path and descends via FindDir for every token but the
// last, which names the file (or leaf directory) the caller operates on.
func (fsys *FileSystem) resolve(path string) (*resolved, error) {
	tokens := splitPath(path)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty path")
	}

	dir := fsys.rootDir
	sector := int32(rootSector)

	for _, tok := range tokens[:len(tokens)-1] {
		next, ok := dir.FindDir(tok)
		if !ok {
			return nil, fmt.Errorf("directory %q not found", tok)
		}
		loaded, err := fsys.loadDirectory(next)
		if err != nil {
			return nil, err
		}
		dir, sector = loaded, next
	}

	return &resolved{dir: dir, sector: sector, name: tokens[len(tokens)-1]}, nil
}

func (fsys *FileSystem) loadDirectory(sector int32) (*Directory, error) {
	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, int(sector)); err != nil {
		return nil, err
	}
	dir := NewDirectory(fsys.geom.NumDirEntries, fsys.geom.FileNameMaxLen)
	if err := dir.FetchFrom(newOpenFile(header, sector, fsys.disk, fsys.geom)); err != nil {
		return nil, err
	}
	return dir, nil
}

func (fsys *FileSystem) writeDirectory(dir *Directory, sector int32) error {
	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, int(sector)); err != nil {
		return err
	}
	return dir.WriteBack(newOpenFile(header, sector, fsys.disk, fsys.geom))
}

func (fsys *FileSystem) writeBitmap() error {
	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, freeMapSector); err != nil {
		return err
	}
	return fsys.bitmap.WriteBack(newOpenFile(header, freeMapSector, fsys.disk, fsys.geom))
}

// Create resolves path, rejects an existing terminal name, and allocates
// a header and sector for a fresh file of initialSize bytes. Any
// sub-step failure discards the in-memory free-map delta by restoring a
// snapshot taken before the first allocation, so nothing is written back.
func (fsys *FileSystem) Create(path string, initialSize int) (bool, error) {
	res, err := fsys.resolve(path)
	if err != nil {
		return false, err
	}
	if res.dir.FindIndex(res.name) >= 0 {
		return false, nil
	}

	snapshot := fsys.bitmap.Snapshot()

	sector, ok := fsys.bitmap.FindAndSet()
	if !ok {
		fsys.bitmap.Restore(snapshot)
		return false, nil
	}

	header := NewFileHeader(fsys.geom)
	ok, err = header.Allocate(fsys.bitmap, fsys.disk, initialSize)
	if err != nil {
		fsys.bitmap.Restore(snapshot)
		return false, err
	}
	if !ok {
		fsys.bitmap.Restore(snapshot)
		return false, nil
	}

	if !res.dir.Add(res.name, int32(sector)) {
		fsys.bitmap.Restore(snapshot)
		return false, nil
	}

	if err := header.WriteBack(fsys.disk, sector); err != nil {
		return false, err
	}
	if err := fsys.writeDirectory(res.dir, res.sector); err != nil {
		return false, err
	}
	if err := fsys.writeBitmap(); err != nil {
		return false, err
	}

	klog.InfoLog.Info("file created", "path", path, "size", initialSize, "sector", sector)
	return true, nil
}

// CreateSubDir is like Create, but sizes the new header for an empty
// directory's worth of data and records the entry as isdir.
func (fsys *FileSystem) CreateSubDir(path string) (bool, error) {
	res, err := fsys.resolve(path)
	if err != nil {
		return false, err
	}
	if res.dir.FindIndex(res.name) >= 0 {
		return false, nil
	}

	snapshot := fsys.bitmap.Snapshot()

	sector, ok := fsys.bitmap.FindAndSet()
	if !ok {
		fsys.bitmap.Restore(snapshot)
		return false, nil
	}

	header := NewFileHeader(fsys.geom)
	ok, err = header.Allocate(fsys.bitmap, fsys.disk, DirectoryFileSize(fsys.geom))
	if err != nil {
		fsys.bitmap.Restore(snapshot)
		return false, err
	}
	if !ok {
		fsys.bitmap.Restore(snapshot)
		return false, nil
	}

	if !res.dir.AddDir(res.name, int32(sector)) {
		fsys.bitmap.Restore(snapshot)
		return false, nil
	}

	if err := header.WriteBack(fsys.disk, sector); err != nil {
		return false, err
	}

	empty := NewDirectory(fsys.geom.NumDirEntries, fsys.geom.FileNameMaxLen)
	if err := empty.WriteBack(newOpenFile(header, int32(sector), fsys.disk, fsys.geom)); err != nil {
		return false, err
	}

	if err := fsys.writeDirectory(res.dir, res.sector); err != nil {
		return false, err
	}
	if err := fsys.writeBitmap(); err != nil {
		return false, err
	}

	klog.InfoLog.Info("directory created", "path", path, "sector", sector)
	return true, nil
}

// Open resolves path and returns a new OpenFile bound to the terminal
// sector, or nil if it doesn't exist. Ids in the syscall surface are
// exactly these sector numbers.
func (fsys *FileSystem) Open(path string) (*OpenFile, bool) {
	res, err := fsys.resolve(path)
	if err != nil {
		return nil, false
	}
	sector, ok := res.dir.Find(res.name)
	if !ok {
		return nil, false
	}

	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, int(sector)); err != nil {
		return nil, false
	}

	of := newOpenFile(header, sector, fsys.disk, fsys.geom)
	fsys.openFiles[sector] = of
	return of, true
}

// Read reads from the file previously opened as id.
func (fsys *FileSystem) Read(id int32, buf []byte) (int, error) {
	of, ok := fsys.openFiles[id]
	if !ok {
		return 0, fmt.Errorf("id %d is not open", id)
	}
	return of.Read(buf)
}

// Write writes to the file previously opened as id.
func (fsys *FileSystem) Write(id int32, buf []byte) (int, error) {
	of, ok := fsys.openFiles[id]
	if !ok {
		return 0, fmt.Errorf("id %d is not open", id)
	}
	return of.Write(buf)
}

// Close drops id from the open-file table. Flushes nothing: a header is
// immutable once created.
func (fsys *FileSystem) Close(id int32) error {
	if _, ok := fsys.openFiles[id]; !ok {
		return fmt.Errorf("id %d is not open", id)
	}
	delete(fsys.openFiles, id)
	return nil
}

// Remove deallocates a file's data, clears its header sector, and
// removes its directory entry.
func (fsys *FileSystem) Remove(path string) (bool, error) {
	res, err := fsys.resolve(path)
	if err != nil {
		return false, err
	}
	sector, ok := res.dir.Find(res.name)
	if !ok {
		return false, nil
	}

	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, int(sector)); err != nil {
		return false, err
	}
	if err := header.Deallocate(fsys.bitmap, fsys.disk); err != nil {
		return false, err
	}
	fsys.bitmap.Clear(int(sector))
	res.dir.Remove(res.name)

	if err := fsys.writeDirectory(res.dir, res.sector); err != nil {
		return false, err
	}
	if err := fsys.writeBitmap(); err != nil {
		return false, err
	}

	klog.InfoLog.Info("file removed", "path", path)
	return true, nil
}

var ErrDirectoryNotEmpty = fmt.Errorf("directory not empty")

// RemoveDir removes an empty directory. Refuses (ErrDirectoryNotEmpty)
// if it still has entries -- the source allows removing a non-empty
// directory and leaks its children; call RecurRemove for that instead.
func (fsys *FileSystem) RemoveDir(path string) (bool, error) {
	res, err := fsys.resolve(path)
	if err != nil {
		return false, err
	}
	sector, ok := res.dir.FindDir(res.name)
	if !ok {
		return false, nil
	}

	child, err := fsys.loadDirectory(sector)
	if err != nil {
		return false, err
	}
	if len(child.List()) > 0 {
		return false, ErrDirectoryNotEmpty
	}

	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, int(sector)); err != nil {
		return false, err
	}
	if err := header.Deallocate(fsys.bitmap, fsys.disk); err != nil {
		return false, err
	}
	fsys.bitmap.Clear(int(sector))
	res.dir.Remove(res.name)

	if err := fsys.writeDirectory(res.dir, res.sector); err != nil {
		return false, err
	}
	if err := fsys.writeBitmap(); err != nil {
		return false, err
	}

	klog.InfoLog.Info("directory removed", "path", path)
	return true, nil
}

// RecurRemove removes path, recursing into every entry first when it
// names a directory: sub-directories recurse with path+name+"/", files
// recurse with path+name, and the now-empty directory is finally removed
// with RemoveDir.
func (fsys *FileSystem) RecurRemove(path string) error {
	res, err := fsys.resolve(path)
	if err != nil {
		return err
	}

	if sector, ok := res.dir.FindDir(res.name); ok {
		child, err := fsys.loadDirectory(sector)
		if err != nil {
			return err
		}
		base := strings.TrimSuffix(path, "/") + "/"
		for _, e := range child.List() {
			if e.IsDir {
				if err := fsys.RecurRemove(base + e.Name + "/"); err != nil {
					return err
				}
			} else {
				if err := fsys.RecurRemove(base + e.Name); err != nil {
					return err
				}
			}
		}
		_, err = fsys.RemoveDir(path)
		return err
	}

	_, err = fsys.Remove(path)
	return err
}

// CountHeaderSize reports a file's logical length and the total bytes
// its header chain occupies on disk. Surfaced here because the source
// only prints the equivalent information from inside FileSystem::Print;
// returning it lets callers format it however they like.
func (fsys *FileSystem) CountHeaderSize(path string) (fileLength int, headerBytes int, err error) {
	res, resErr := fsys.resolve(path)
	if resErr != nil {
		return 0, 0, resErr
	}
	sector, ok := res.dir.Find(res.name)
	if !ok {
		return 0, 0, fmt.Errorf("%q not found", path)
	}

	header := NewFileHeader(fsys.geom)
	if err := header.FetchFrom(fsys.disk, int(sector)); err != nil {
		return 0, 0, err
	}
	count, err := header.CountHeader(fsys.disk)
	if err != nil {
		return 0, 0, err
	}
	return header.FileLength(), count * fsys.geom.SectorSize, nil
}

// List resolves path to a directory and writes a flat listing to w.
func (fsys *FileSystem) List(path string, w io.Writer) error {
	dir, err := fsys.dirAt(path)
	if err != nil {
		return err
	}

	tbl := table.New("kind", "name", "sector").WithWriter(w)
	for _, e := range dir.List() {
		kind := "F"
		if e.IsDir {
			kind = "D"
		}
		tbl.AddRow(kind, e.Name, e.Sector)
	}
	tbl.Print()
	return nil
}

// RecurList resolves path to a directory and writes a depth-first
// listing to w, indenting each level.
func (fsys *FileSystem) RecurList(path string, w io.Writer) error {
	dir, err := fsys.dirAt(path)
	if err != nil {
		return err
	}
	fsys.recurListInto(dir, 0, w)
	return nil
}

func (fsys *FileSystem) recurListInto(dir *Directory, depth int, w io.Writer) {
	indent := strings.Repeat("  ", depth)
	for _, e := range dir.List() {
		kind := "F"
		if e.IsDir {
			kind = "D"
		}
		fmt.Fprintf(w, "%s[%s] %s\n", indent, kind, e.Name)
		if e.IsDir {
			child, err := fsys.loadDirectory(e.Sector)
			if err != nil {
				continue
			}
			fsys.recurListInto(child, depth+1, w)
		}
	}
}

func (fsys *FileSystem) dirAt(path string) (*Directory, error) {
	tokens := splitPath(path)
	if len(tokens) == 0 {
		return fsys.rootDir, nil
	}
	dir := fsys.rootDir
	for _, tok := range tokens {
		sector, ok := dir.FindDir(tok)
		if !ok {
			return nil, fmt.Errorf("directory %q not found", tok)
		}
		loaded, err := fsys.loadDirectory(sector)
		if err != nil {
			return nil, err
		}
		dir = loaded
	}
	return dir, nil
}

// DebugPrint dumps the whole tree's entries and header chains to w, for
// developer visibility -- never on the hot path.
func (fsys *FileSystem) DebugPrint(w io.Writer) {
	fmt.Fprintln(w, "free sectors:", fsys.bitmap.NumClear())
	fsys.debugPrintDir(fsys.rootDir, "/", w)
}

func (fsys *FileSystem) debugPrintDir(dir *Directory, path string, w io.Writer) {
	for _, e := range dir.List() {
		full := path + e.Name
		if e.IsDir {
			fmt.Fprintf(w, "[D] %s (sector %d)\n", full, e.Sector)
			child, err := fsys.loadDirectory(e.Sector)
			if err == nil {
				fsys.debugPrintDir(child, full+"/", w)
			}
			continue
		}

		header := NewFileHeader(fsys.geom)
		if err := header.FetchFrom(fsys.disk, int(e.Sector)); err == nil {
			headerCount, _ := header.CountHeader(fsys.disk)
			fmt.Fprintf(w, "[F] %s (sector %d, %d bytes, %d header sectors)\n", full, e.Sector, header.FileLength(), headerCount)
		}
	}
}
