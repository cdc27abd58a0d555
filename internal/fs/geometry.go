package fs

// Geometry bundles the disk and file-header dimensions every piece of
// this package needs, threaded explicitly through constructors instead
// of reached for as a package-level global.
type Geometry struct {
	SectorSize     int
	NumDirect      int
	NumDirEntries  int
	FileNameMaxLen int
}

// BytesInLevel1 is the capacity of a leaf header: NumDirect direct data
// sectors.
func (g Geometry) BytesInLevel1() int { return g.NumDirect * g.SectorSize }

// BytesInLevel2 is the capacity of a header one indirection deep: each
// of its NumDirect entries is itself a leaf header.
func (g Geometry) BytesInLevel2() int { return g.NumDirect * g.BytesInLevel1() }

// BytesInLevel3 is the capacity of a header two indirections deep.
func (g Geometry) BytesInLevel3() int { return g.NumDirect * g.BytesInLevel2() }

func divRoundUp(n, d int) int {
	return (n + d - 1) / d
}
