package proc

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/huiyuiui/NachOS/internal/klog"
	"github.com/huiyuiui/NachOS/internal/machine"
)

// Scheduler owns the three ready queues, the aging/preemption decisions
// over them, and the current-thread/toBeDestroyed handoff. Every entry
// point's precondition is "interrupts disabled" -- on a uniprocessor
// that's the kernel's only mutual-exclusion mechanism, so instead of a
// lock per queue this scheduler is guarded by an explicit
// DisableInterrupts/EnableInterrupts pair the caller brackets every
// critical section with.
type Scheduler struct {
	mu            sync.Mutex
	interruptsOff bool

	l1 l1Queue
	l2 l2Queue
	l3 []*Thread

	current       *Thread
	toBeDestroyed *Thread

	nextSeq int64

	agingQuantum    int
	agingIncrement  int
}

// NewScheduler builds an empty scheduler with the given aging tunables.
func NewScheduler(agingQuantumTicks, agingIncrement int) *Scheduler {
	return &Scheduler{
		agingQuantum:   agingQuantumTicks,
		agingIncrement: agingIncrement,
	}
}

// DisableInterrupts enters the scheduler's critical section. PutToReady,
// ScheduleNext, Aging, CheckPreempt and Run panic if called without this
// held first.
func (s *Scheduler) DisableInterrupts() {
	s.mu.Lock()
	s.interruptsOff = true
}

// EnableInterrupts leaves the critical section.
func (s *Scheduler) EnableInterrupts() {
	s.interruptsOff = false
	s.mu.Unlock()
}

func (s *Scheduler) assertInterruptsOff() {
	if !s.interruptsOff {
		panic("scheduler entry point invoked with interrupts enabled")
	}
}

// Current returns the thread presently marked RUNNING, or nil.
func (s *Scheduler) Current() *Thread { return s.current }

// PutToReady inserts t into the queue matching its current priority
// band. If t was BLOCKED, its burst accounting is reset first (see
// Thread.resetBurstOnWake). Precondition: interrupts disabled.
func (s *Scheduler) PutToReady(t *Thread, now int) {
	s.assertInterruptsOff()

	if t.Status == Blocked {
		t.resetBurstOnWake()
	}

	t.Status = Ready
	t.InsertReadyTime = now
	t.seq = s.nextSeq
	s.nextSeq++

	level := t.WhichQueue()
	switch level {
	case 1:
		heap.Push(&s.l1, t)
	case 2:
		heap.Push(&s.l2, t)
	case 3:
		s.l3 = append(s.l3, t)
	}

	klog.InfoLog.Info("thread inserted into ready queue", "id", t.ID, "level", level, "priority", t.Priority)
}

// ScheduleNext pops and returns the next thread to run, observing strict
// priority between levels: L1 before L2 before L3. Returns nil when all
// three are empty. Precondition: interrupts disabled.
func (s *Scheduler) ScheduleNext() *Thread {
	s.assertInterruptsOff()

	if s.l1.Len() > 0 {
		return heap.Pop(&s.l1).(*Thread)
	}
	if s.l2.Len() > 0 {
		return heap.Pop(&s.l2).(*Thread)
	}
	if len(s.l3) > 0 {
		t := s.l3[0]
		s.l3 = s.l3[1:]
		return t
	}
	return nil
}

// Aging scans every ready thread and, for each full agingQuantum ticks
// it has waited, raises its priority by agingIncrement -- looping so a
// thread that waited multiple quanta crosses the boundary that many
// times in one call, exactly as many quanta as have elapsed. A priority
// crossing into a higher band moves the thread into that queue.
// Precondition: interrupts disabled.
func (s *Scheduler) Aging(now int) {
	s.assertInterruptsOff()

	s.ageQueue(s.l1.items, now)
	s.ageQueue(s.l2.items, now)
	s.ageQueue(s.l3, now)

	// Aging mutates Priority in place on the backing slices, which can
	// reorder residents without moving them across bands (e.g. two L2
	// threads waiting unequal amounts). Re-establish both heap invariants
	// before any removal/insertion below relies on them.
	heap.Init(&s.l1)
	heap.Init(&s.l2)

	s.promoteCrossedBands()
}

func (s *Scheduler) ageQueue(threads []*Thread, now int) {
	for _, t := range threads {
		waited := now - t.InsertReadyTime
		for waited >= s.agingQuantum {
			oldBand := t.WhichQueue()
			if oldBand != 1 || t.Priority < MaxPriority {
				t.Priority += s.agingIncrement
				if oldBand == 1 && t.Priority > MaxPriority {
					t.Priority = MaxPriority
				}
			}
			t.InsertReadyTime += s.agingQuantum
			waited -= s.agingQuantum
			klog.InfoLog.Info("thread aged", "id", t.ID, "priority", t.Priority)
		}
	}
}

// promoteCrossedBands removes and reinserts every thread whose band no
// longer matches the queue it physically sits in, following aging. It
// operates over snapshots of each queue's contents because Aging mutates
// priorities that can move threads across all three queues at once.
func (s *Scheduler) promoteCrossedBands() {
	var crossed []*Thread

	for _, t := range s.l3 {
		if t.WhichQueue() != 3 {
			crossed = append(crossed, t)
		}
	}
	for _, t := range s.l2.items {
		if t.WhichQueue() != 2 {
			crossed = append(crossed, t)
		}
	}
	// L1 residents never promote further; nothing to scan there.

	for _, t := range crossed {
		s.removeFromCurrentQueue(t)
		level := t.WhichQueue()
		switch level {
		case 1:
			heap.Push(&s.l1, t)
		case 2:
			heap.Push(&s.l2, t)
		case 3:
			s.l3 = append(s.l3, t)
		}
		klog.InfoLog.Info("thread promoted by aging", "id", t.ID, "priority", t.Priority, "newLevel", level)
	}
}

func (s *Scheduler) removeFromCurrentQueue(t *Thread) {
	if idx := indexOf(s.l3, t); idx >= 0 {
		s.l3 = append(s.l3[:idx], s.l3[idx+1:]...)
		return
	}
	if t.queueIndex >= 0 && t.queueIndex < s.l2.Len() && s.l2.items[t.queueIndex] == t {
		heap.Remove(&s.l2, t.queueIndex)
		return
	}
	if t.queueIndex >= 0 && t.queueIndex < s.l1.Len() && s.l1.items[t.queueIndex] == t {
		heap.Remove(&s.l1, t.queueIndex)
		return
	}
}

func indexOf(threads []*Thread, t *Thread) int {
	for i, candidate := range threads {
		if candidate == t {
			return i
		}
	}
	return -1
}

// CheckPreempt reports whether the currently running thread should be
// preempted in favor of a ready successor: L1 preempts on a shorter
// remaining burst at the front of L1, L2 preempts whenever L1 is
// non-empty, and L3 preempts whenever another L3 thread is waiting (the
// round-robin quantum itself is enforced by the caller). Precondition:
// interrupts disabled.
func (s *Scheduler) CheckPreempt(current *Thread) bool {
	s.assertInterruptsOff()

	switch current.WhichQueue() {
	case 1:
		front := s.l1.peek()
		return front != nil && front.RemainBurst < current.RemainBurst
	case 2:
		return s.l1.Len() > 0
	case 3:
		return len(s.l3) > 0
	default:
		return false
	}
}

// Run switches the current thread to next, saving the outgoing thread's
// user registers or, if finishing, parking it in toBeDestroyed instead,
// and publishing next's page table and registers to the machine. It returns any thread that was sitting in toBeDestroyed
// from a *previous* call -- now that we're running on next's stack
// instead of that thread's, it's finally safe for the caller (which owns
// the frame allocator) to tear down its address space. Precondition:
// interrupts disabled.
func (s *Scheduler) Run(next *Thread, finishing bool, now int, m machine.Machine) *Thread {
	s.assertInterruptsOff()

	outgoing := s.current

	if finishing && s.toBeDestroyed != nil {
		panic("toBeDestroyed slot already occupied")
	}

	// Draining toBeDestroyed happens on every call, mirroring
	// "upon returning into the old stack frame, reclaim any pending
	// toBeDestroyed thread" -- whatever was parked by the call before
	// this one is only safe to tear down once we're no longer about to
	// run on its stack, i.e. right now.
	reclaimed := s.toBeDestroyed
	s.toBeDestroyed = nil

	if finishing {
		s.toBeDestroyed = outgoing
	} else if outgoing != nil {
		outgoing.SaveUserState(m)
	}

	s.current = next
	next.StartRunning(now)

	if next.Space != nil {
		next.Space.RestoreState(m)
	}
	next.RestoreUserState(m)

	klog.InfoLog.Info("context switch", "from", threadID(outgoing), "to", next.ID, "finishing", finishing)

	if reclaimed != nil {
		klog.InfoLog.Info("reclaiming deferred thread", "id", reclaimed.ID)
	}
	return reclaimed
}

func threadID(t *Thread) string {
	if t == nil {
		return "none"
	}
	return fmt.Sprintf("%d", t.ID)
}
