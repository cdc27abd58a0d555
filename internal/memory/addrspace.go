package memory

import (
	"fmt"
	"io"

	"github.com/huiyuiui/NachOS/internal/klog"
	"github.com/huiyuiui/NachOS/internal/machine"
)

// ExecutableFile is the narrow read-only contract AddressSpace.Load needs
// from whatever holds the NOFF image's bytes. internal/fs's open-file
// handles satisfy this structurally (same shape as io.ReaderAt), so this
// package never has to import internal/fs.
type ExecutableFile interface {
	ReadAt(p []byte, off int64) (int, error)
}

// AddressSpace is a process's flat, single-level page table plus the
// bookkeeping Load needs to populate it from a NOFF image.
type AddressSpace struct {
	pageTable    []machine.PageTableEntry
	numPages     int
	pageSize     int
	numPhysPages int
}

func divRoundUp(n, d int) int {
	return (n + d - 1) / d
}

// Load parses the NOFF image read through exe, claims one frame per
// virtual page from alloc, and copies every non-empty segment into main
// memory a page at a time. Returns MemoryLimitException (not an error)
// when the image needs more pages than are free -- no frames are kept in
// that case. A malformed NOFF magic is a programming error and panics.
func (as *AddressSpace) Load(exe ExecutableFile, alloc *FrameAllocator, mainMemory []byte, pageSize, numPhysPages, userStackSize int) (ExceptionType, error) {
	headerBuf := make([]byte, 4+4*12)
	if _, err := exe.ReadAt(headerBuf, 0); err != nil && err != io.EOF {
		return NoException, fmt.Errorf("reading noff header: %w", err)
	}

	header, err := machine.DecodeNOFFHeader(headerBuf)
	if err != nil {
		panic(fmt.Sprintf("corrupt executable image: %v", err))
	}

	size := int(header.Code.Size) + int(header.ReadonlyData.Size) +
		int(header.InitData.Size) + int(header.UninitData.Size) + userStackSize
	numPages := divRoundUp(size, pageSize)

	klog.InfoLog.Info("initializing address space", "pages", numPages, "bytes", numPages*pageSize)

	if numPages > alloc.FreeCount() {
		klog.ErrorLog.Error("image exceeds free frames", "pages", numPages, "free", alloc.FreeCount())
		return MemoryLimitException, nil
	}

	table := make([]machine.PageTableEntry, numPages)
	for i := 0; i < numPages; i++ {
		frame, ok := alloc.Alloc()
		if !ok {
			for _, pte := range table[:i] {
				alloc.Free(pte.PhysicalPage)
			}
			return MemoryLimitException, nil
		}
		table[i] = machine.PageTableEntry{VirtualPage: i, PhysicalPage: frame, Valid: true}
	}

	as.pageTable = table
	as.numPages = numPages
	as.pageSize = pageSize
	as.numPhysPages = numPhysPages

	copySegment := func(seg machine.Segment, readOnly bool) error {
		if seg.Size <= 0 {
			return nil
		}
		klog.InfoLog.Info("loading segment", "virtualAddr", seg.VirtualAddr, "size", seg.Size, "readOnly", readOnly)

		remaining := int(seg.Size)
		vaddr := int(seg.VirtualAddr)
		inFilePos := int64(seg.InFileAddr)

		for remaining > 0 {
			chunk := remaining
			if chunk > pageSize {
				chunk = pageSize
			}

			paddr, exc := as.Translate(vaddr, false)
			if exc != NoException {
				panic(fmt.Sprintf("unexpected %s while loading a freshly allocated page table", exc))
			}

			if _, err := exe.ReadAt(mainMemory[paddr:paddr+chunk], inFilePos); err != nil && err != io.EOF {
				return fmt.Errorf("reading segment at file offset %d: %w", inFilePos, err)
			}

			vpn := vaddr / pageSize
			as.pageTable[vpn].ReadOnly = readOnly

			remaining -= chunk
			vaddr += chunk
			inFilePos += int64(chunk)
		}
		return nil
	}

	if err := copySegment(header.Code, true); err != nil {
		return NoException, err
	}
	if err := copySegment(header.ReadonlyData, true); err != nil {
		return NoException, err
	}
	if err := copySegment(header.InitData, false); err != nil {
		return NoException, err
	}
	// uninitData needs no copy-in: frames are already zero-filled on claim.

	return NoException, nil
}

// Translate converts a virtual address into a physical one, reporting
// whichever exception fires first: out-of-range page, a write to a
// read-only page, or a corrupt physical page number.
func (as *AddressSpace) Translate(vaddr int, isWrite bool) (int, ExceptionType) {
	vpn := vaddr / as.pageSize
	offset := vaddr % as.pageSize

	if vpn >= as.numPages {
		return 0, AddressErrorException
	}

	pte := &as.pageTable[vpn]

	if isWrite && pte.ReadOnly {
		return 0, ReadOnlyException
	}

	if pte.PhysicalPage >= as.numPhysPages {
		klog.ErrorLog.Error("illegal physical page", "physicalPage", pte.PhysicalPage)
		return 0, BusErrorException
	}

	pte.Use = true
	if isWrite {
		pte.Dirty = true
	}

	paddr := pte.PhysicalPage*as.pageSize + offset
	if paddr >= as.numPhysPages*as.pageSize {
		panic(fmt.Sprintf("translated address %d exceeds memory size", paddr))
	}
	return paddr, NoException
}

// InitRegisters zeroes every general-purpose register and sets the
// program counter, its branch-delay successor, and the stack pointer to
// the top of this address space.
func (as *AddressSpace) InitRegisters(m machine.Machine) {
	for i := 0; i < machine.NumTotalRegs; i++ {
		m.WriteRegister(i, 0)
	}
	m.WriteRegister(machine.PCReg, 0)
	m.WriteRegister(machine.NextPCReg, 4)

	sp := as.numPages*as.pageSize - 16
	m.WriteRegister(machine.StackReg, sp)
	klog.InfoLog.Info("initializing stack pointer", "sp", sp)
}

// RestoreState publishes this address space's page table to the machine,
// as happens on every context-switch-in.
func (as *AddressSpace) RestoreState(m machine.Machine) {
	m.SetPageTable(as.pageTable, as.numPages)
}

// NumPages reports the address space's virtual page count.
func (as *AddressSpace) NumPages() int { return as.numPages }

// PageTable exposes the entries directly, mostly for tests asserting on
// frame ownership.
func (as *AddressSpace) PageTable() []machine.PageTableEntry { return as.pageTable }

// Destroy releases every frame owned by this address space back to alloc.
func (as *AddressSpace) Destroy(alloc *FrameAllocator) {
	for _, pte := range as.pageTable {
		alloc.Free(pte.PhysicalPage)
	}
	as.pageTable = nil
	as.numPages = 0
}
