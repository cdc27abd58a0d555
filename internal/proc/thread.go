// Package proc implements per-thread scheduling metadata and the
// three-level multi-feedback-queue scheduler that dispatches it.
package proc

import (
	"fmt"

	"github.com/huiyuiui/NachOS/internal/klog"
	"github.com/huiyuiui/NachOS/internal/machine"
	"github.com/huiyuiui/NachOS/internal/memory"
)

// Status is a thread's position in its lifecycle.
type Status int

const (
	JustCreated Status = iota
	Ready
	Running
	Blocked
	Zombie
)

func (s Status) String() string {
	switch s {
	case JustCreated:
		return "JUST_CREATED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// Priority band boundaries. L1 residents have the highest priority.
const (
	L1Threshold = 100
	L2Threshold = 50
	MaxPriority = 149
)

// Thread carries everything the scheduler needs to order, age, and
// dispatch a unit of execution, plus the address space and register file
// it resumes into when it runs.
type Thread struct {
	ID     int
	Name   string
	Status Status

	Priority int

	RemainBurst int
	ApproxBurst float64
	TrueBurst   int

	InsertReadyTime int
	TotalReadyTime  int

	runStartTick int

	Space         *memory.AddressSpace
	UserRegisters [machine.NumTotalRegs]int

	// queueIndex is maintained by container/heap for L1/L2 residency so
	// Aging can remove an arbitrary thread mid-scan; seq breaks exact
	// comparator ties by insertion order, per spec's ordering guarantee.
	queueIndex int
	seq        int64
}

// NewThread creates a JUST_CREATED thread with the given initial
// priority and burst estimate.
func NewThread(id int, name string, priority int, initialApproxBurst float64) *Thread {
	return &Thread{
		ID:          id,
		Name:        name,
		Status:      JustCreated,
		Priority:    priority,
		ApproxBurst: initialApproxBurst,
		queueIndex:  -1,
	}
}

// WhichQueue reports which of the three ready-queue levels this thread's
// current priority belongs to.
func (t *Thread) WhichQueue() int {
	switch {
	case t.Priority >= L1Threshold:
		return 1
	case t.Priority >= L2Threshold:
		return 2
	default:
		return 3
	}
}

// StartRunning records the tick at which this thread was dispatched, so
// elapsed time can be folded into TrueBurst later.
func (t *Thread) StartRunning(now int) {
	t.Status = Running
	t.runStartTick = now
}

// Block transitions a running thread to BLOCKED, folds the just-completed
// burst into TrueBurst, and recomputes ApproxBurst as the exponential
// average of the observed and previously estimated burst lengths.
func (t *Thread) Block(now int, alpha float64) {
	t.TrueBurst += now - t.runStartTick
	t.ApproxBurst = alpha*float64(t.TrueBurst) + (1-alpha)*t.ApproxBurst
	t.Status = Blocked
	klog.InfoLog.Info("thread blocked", "id", t.ID, "approxBurst", t.ApproxBurst)
}

// SaveUserState copies the machine's current registers into this
// thread's private register file, done on every context-switch-out.
func (t *Thread) SaveUserState(m machine.Machine) {
	for i := 0; i < machine.NumTotalRegs; i++ {
		t.UserRegisters[i] = m.ReadRegister(i)
	}
}

// RestoreUserState publishes this thread's saved registers back to the
// machine, done on every context-switch-in.
func (t *Thread) RestoreUserState(m machine.Machine) {
	for i := 0; i < machine.NumTotalRegs; i++ {
		m.WriteRegister(i, t.UserRegisters[i])
	}
}

// resetBurstOnWake applies the BLOCKED->READY burst-accounting reset:
// remain_burst takes over the freshly recomputed estimate and true_burst
// starts over.
func (t *Thread) resetBurstOnWake() {
	t.RemainBurst = int(t.ApproxBurst)
	t.TrueBurst = 0
}

// String renders a short debug summary, matching the rest of the kernel's
// habit of giving every stateful type a String().
func (t *Thread) String() string {
	return fmt.Sprintf("Thread{ID: %d, Name: %s, Status: %s, Priority: %d}",
		t.ID, t.Name, t.Status, t.Priority)
}
