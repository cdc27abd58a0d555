package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huiyuiui/NachOS/internal/machine"
)

func readyThread(id int, name string, priority int, remainBurst int) *Thread {
	th := NewThread(id, name, priority, float64(remainBurst))
	th.RemainBurst = remainBurst
	return th
}

func TestScheduleNextRespectsLevelPriority(t *testing.T) {
	s := NewScheduler(1500, 10)
	l1 := readyThread(1, "l1", 120, 100)
	l2 := readyThread(2, "l2", 70, 100)
	l3 := readyThread(3, "l3", 10, 100)

	s.DisableInterrupts()
	s.PutToReady(l3, 0)
	s.PutToReady(l2, 0)
	s.PutToReady(l1, 0)

	assert.Same(t, l1, s.ScheduleNext())
	assert.Same(t, l2, s.ScheduleNext())
	assert.Same(t, l3, s.ScheduleNext())
	assert.Nil(t, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestL1OrdersByRemainBurstThenInsertionOrderOnNonzeroTie(t *testing.T) {
	s := NewScheduler(1500, 10)
	short := readyThread(1, "short", 100, 50)
	long := readyThread(2, "long", 100, 200)
	tieFirst := readyThread(3, "tie-first", 140, 50)
	tieHigherPriority := readyThread(4, "tie-hi", 149, 50)
	tieSecond := readyThread(5, "tie-second", 140, 50)

	s.DisableInterrupts()
	s.PutToReady(long, 0)
	s.PutToReady(short, 0)
	assert.Same(t, short, s.ScheduleNext())
	assert.Same(t, long, s.ScheduleNext())

	s.PutToReady(tieFirst, 0)
	s.PutToReady(tieHigherPriority, 0)
	s.PutToReady(tieSecond, 0)
	// All three tie at RemainBurst == 50, a nonzero tie, so Priority is not
	// consulted at all and insertion order alone decides.
	assert.Same(t, tieFirst, s.ScheduleNext())
	assert.Same(t, tieHigherPriority, s.ScheduleNext())
	assert.Same(t, tieSecond, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestL1OrdersByPriorityOnZeroBurstTie(t *testing.T) {
	s := NewScheduler(1500, 10)
	tieHigherPriority := readyThread(1, "tie-hi", 149, 0)
	tieFirst := readyThread(2, "tie-first", 140, 0)
	tieSecond := readyThread(3, "tie-second", 140, 0)

	s.DisableInterrupts()
	s.PutToReady(tieFirst, 0)
	s.PutToReady(tieHigherPriority, 0)
	s.PutToReady(tieSecond, 0)
	// At RemainBurst == 0 for both sides of the comparison, Priority breaks
	// the tie ahead of insertion order.
	assert.Same(t, tieHigherPriority, s.ScheduleNext())
	assert.Same(t, tieFirst, s.ScheduleNext())
	assert.Same(t, tieSecond, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestL2OrdersByPriorityThenInsertionOrder(t *testing.T) {
	s := NewScheduler(1500, 10)
	low := readyThread(1, "low", 55, 0)
	high := readyThread(2, "high", 90, 0)
	tieA := readyThread(3, "tie-a", 70, 0)
	tieB := readyThread(4, "tie-b", 70, 0)

	s.DisableInterrupts()
	s.PutToReady(low, 0)
	s.PutToReady(tieA, 0)
	s.PutToReady(high, 0)
	s.PutToReady(tieB, 0)

	assert.Same(t, high, s.ScheduleNext())
	assert.Same(t, tieA, s.ScheduleNext())
	assert.Same(t, tieB, s.ScheduleNext())
	assert.Same(t, low, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestL3IsFIFO(t *testing.T) {
	s := NewScheduler(1500, 10)
	first := readyThread(1, "first", 10, 0)
	second := readyThread(2, "second", 10, 0)

	s.DisableInterrupts()
	s.PutToReady(first, 0)
	s.PutToReady(second, 0)
	assert.Same(t, first, s.ScheduleNext())
	assert.Same(t, second, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestCheckPreemptL1ShorterBurstWins(t *testing.T) {
	s := NewScheduler(1500, 10)
	current := readyThread(1, "current", 120, 200)
	shorter := readyThread(2, "shorter", 120, 50)

	s.DisableInterrupts()
	s.PutToReady(shorter, 0)
	assert.True(t, s.CheckPreempt(current))
	s.EnableInterrupts()
}

func TestCheckPreemptL2PreemptsWheneverL1NonEmpty(t *testing.T) {
	s := NewScheduler(1500, 10)
	current := readyThread(1, "current", 70, 0)
	l1 := readyThread(2, "l1", 120, 0)

	s.DisableInterrupts()
	assert.False(t, s.CheckPreempt(current))
	s.PutToReady(l1, 0)
	assert.True(t, s.CheckPreempt(current))
	s.EnableInterrupts()
}

func TestAgingPromotesAcrossBands(t *testing.T) {
	s := NewScheduler(100, 60)
	th := readyThread(1, "climber", 45, 0) // L3

	s.DisableInterrupts()
	s.PutToReady(th, 0)
	require.Equal(t, 3, th.WhichQueue())

	// Two full quanta elapse: the first +60 takes 45 straight to 105, into
	// L1 (>=100), and the second saturates at MaxPriority (149).
	s.Aging(200)
	s.EnableInterrupts()

	assert.Equal(t, 149, th.Priority)
	assert.Equal(t, 1, th.WhichQueue())

	s.DisableInterrupts()
	assert.Same(t, th, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestAgingSaturatesL1AtMaxPriority(t *testing.T) {
	s := NewScheduler(100, 60)
	th := readyThread(1, "saturated", 120, 0)

	s.DisableInterrupts()
	s.PutToReady(th, 0)
	s.Aging(1000)
	s.EnableInterrupts()

	assert.Equal(t, MaxPriority, th.Priority)
}

func TestAgingReestablishesL2HeapOrderAfterDifferentialAging(t *testing.T) {
	s := NewScheduler(1500, 10)
	high := readyThread(1, "high", 60, 0)
	low := readyThread(2, "low", 55, 0)

	s.DisableInterrupts()
	s.PutToReady(high, 1400)
	s.PutToReady(low, 0)
	require.Equal(t, 2, high.WhichQueue())
	require.Equal(t, 2, low.WhichQueue())

	// high has waited 100 ticks (no crossing), low has waited the full
	// 1500 and gains one increment -- both stay in L2, but low now
	// outranks high even though high sits at the heap's root.
	s.Aging(1500)
	s.EnableInterrupts()

	assert.Equal(t, 60, high.Priority)
	assert.Equal(t, 65, low.Priority)

	s.DisableInterrupts()
	assert.Same(t, low, s.ScheduleNext(), "the heap root must be the maximum-priority L2 thread")
	assert.Same(t, high, s.ScheduleNext())
	s.EnableInterrupts()
}

func TestRunReclaimsThreadParkedByPreviousCall(t *testing.T) {
	s := NewScheduler(1500, 10)
	m := machine.NewSimMachine(1024, machine.NumTotalRegs)

	a := readyThread(1, "a", 120, 0)
	b := readyThread(2, "b", 120, 0)

	s.DisableInterrupts()
	reclaimed := s.Run(a, false, 0, m)
	assert.Nil(t, reclaimed)

	// a is the outgoing (finishing) thread here, parked rather than
	// reclaimed immediately -- we're still conceptually on its stack.
	reclaimed = s.Run(b, true, 10, m)
	assert.Nil(t, reclaimed, "a is only parked, not yet reclaimed")
	assert.Same(t, b, s.Current())

	next := readyThread(3, "next", 120, 0)
	reclaimed = s.Run(next, false, 20, m)
	s.EnableInterrupts()

	assert.Same(t, a, reclaimed, "a was parked as finishing and is now reclaimed")
}

func TestRunPanicsIfToBeDestroyedSlotOccupied(t *testing.T) {
	s := NewScheduler(1500, 10)
	m := machine.NewSimMachine(1024, machine.NumTotalRegs)

	a := readyThread(1, "a", 120, 0)
	b := readyThread(2, "b", 120, 0)
	c := readyThread(3, "c", 120, 0)

	s.DisableInterrupts()
	s.Run(a, false, 0, m)
	s.Run(b, true, 10, m) // parks a, since a was outgoing and finishing

	// b is now outgoing; finishing it again would try to park a second
	// thread while a is still waiting to be drained.
	assert.Panics(t, func() {
		s.Run(c, true, 20, m)
	})
	s.EnableInterrupts()
}

func TestSchedulerEntryPointsPanicWithoutDisableInterrupts(t *testing.T) {
	s := NewScheduler(1500, 10)
	th := readyThread(1, "t", 10, 0)
	assert.Panics(t, func() { s.PutToReady(th, 0) })
}
