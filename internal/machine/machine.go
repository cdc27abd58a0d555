// Package machine defines the contract this kernel expects from the
// simulated CPU/interpreter it runs on top of, and a minimal in-memory
// stand-in satisfying that contract for tests and the demo command.
//
// The real interpreter -- instruction fetch/decode, the register file's
// execution semantics, the interrupt controller -- is the out-of-scope
// external collaborator; only the surface the kernel touches is modeled
// here.
package machine

// Machine is the simulated CPU surface the kernel publishes page tables
// to and initializes registers on. PageTable/PageTableSize are the two
// fields the machine consults on every memory reference; an address
// space's RestoreState call is exactly "point these at my own table".
type Machine interface {
	MainMemory() []byte
	WriteRegister(reg int, value int)
	ReadRegister(reg int) int
	SetPageTable(table []PageTableEntry, size int)
}

// PageTableEntry mirrors the translation entry an AddressSpace owns and
// the machine reads during translation.
type PageTableEntry struct {
	VirtualPage  int
	PhysicalPage int
	Valid        bool
	Use          bool
	Dirty        bool
	ReadOnly     bool
}

// Register indices matching the MIPS-like convention this kernel targets:
// the program counter, its branch-delay successor, and the stack pointer.
const (
	PCReg      = 34
	NextPCReg  = 35
	StackReg   = 29
	NumTotalRegs = 40
)

// SimMachine is a bare-bones Machine backed by a plain byte slice and
// register array, enough to drive AddressSpace.Load/Translate and the
// scheduler's context-switch hooks in isolation.
type SimMachine struct {
	mem           []byte
	registers     []int
	pageTable     []PageTableEntry
	pageTableSize int
}

// NewSimMachine allocates a simulated machine with memorySize bytes of
// main memory and numRegisters general-purpose registers.
func NewSimMachine(memorySize, numRegisters int) *SimMachine {
	return &SimMachine{
		mem:       make([]byte, memorySize),
		registers: make([]int, numRegisters),
	}
}

func (m *SimMachine) MainMemory() []byte { return m.mem }

func (m *SimMachine) WriteRegister(reg int, value int) { m.registers[reg] = value }

func (m *SimMachine) ReadRegister(reg int) int { return m.registers[reg] }

func (m *SimMachine) SetPageTable(table []PageTableEntry, size int) {
	m.pageTable = table
	m.pageTableSize = size
}

// PageTable exposes the currently published table, mostly for tests that
// want to assert a context switch actually happened.
func (m *SimMachine) PageTable() ([]PageTableEntry, int) {
	return m.pageTable, m.pageTableSize
}
