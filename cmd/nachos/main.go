// Command nachos is a demo driver: it formats a simulated disk, loads an
// executable image into it through the file system, builds an address
// space from that image, and drives a handful of synthetic threads
// through the scheduler until they finish. There is no real CPU behind
// this -- instruction fetch/decode is an out-of-scope external
// collaborator -- so each thread's "execution" is simply ticking down
// the burst length the scheduler estimated for it.
package main

import (
	"fmt"
	"os"

	"github.com/rodaine/table"

	"github.com/huiyuiui/NachOS/internal/config"
	"github.com/huiyuiui/NachOS/internal/fs"
	"github.com/huiyuiui/NachOS/internal/klog"
	"github.com/huiyuiui/NachOS/internal/machine"
	"github.com/huiyuiui/NachOS/internal/memory"
	"github.com/huiyuiui/NachOS/internal/proc"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <program-image> [config.json]\n", os.Args[0])
		os.Exit(1)
	}
	imagePath := os.Args[1]

	cfg := config.Default()
	if len(os.Args) >= 3 {
		loaded, err := config.Load[config.Config](os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	klog.Init(cfg.LogLevel, "nachos")

	klog.InfoLog.Info("nachos starting", "image", imagePath)

	image, err := os.ReadFile(imagePath)
	if err != nil {
		klog.ErrorLog.Error("reading program image", "error", err)
		os.Exit(1)
	}

	disk := fs.NewSimDisk(cfg.SectorSize, cfg.NumSectors)
	geom := fs.Geometry{
		SectorSize:     cfg.SectorSize,
		NumDirect:      cfg.NumDirect,
		NumDirEntries:  cfg.NumDirEntries,
		FileNameMaxLen: cfg.FileNameMaxLen,
	}

	filesystem, err := fs.Format(disk, geom)
	if err != nil {
		klog.ErrorLog.Error("formatting file system", "error", err)
		os.Exit(1)
	}

	if ok, err := filesystem.Create("/program", len(image)); err != nil || !ok {
		klog.ErrorLog.Error("creating program file", "error", err, "ok", ok)
		os.Exit(1)
	}
	of, ok := filesystem.Open("/program")
	if !ok {
		klog.ErrorLog.Error("opening program file")
		os.Exit(1)
	}
	if _, err := of.WriteAt(image, 0); err != nil {
		klog.ErrorLog.Error("writing program image into file system", "error", err)
		os.Exit(1)
	}

	m := machine.NewSimMachine(cfg.MemorySize(), cfg.NumRegisters)
	alloc := memory.NewFrameAllocator(cfg.NumPhysPages, cfg.PageSize, m.MainMemory())

	threads := spawnThreads(of, alloc, m, cfg)
	if len(threads) == 0 {
		klog.ErrorLog.Error("no thread could be loaded, nothing to run")
		os.Exit(1)
	}

	scheduler := proc.NewScheduler(cfg.AgingQuantumTicks, cfg.AgingIncrement)

	scheduler.DisableInterrupts()
	for _, t := range threads {
		scheduler.PutToReady(t, 0)
	}
	scheduler.EnableInterrupts()

	run(scheduler, alloc, m, cfg)

	printSummary(threads, alloc)
	klog.InfoLog.Info("nachos finished")
}

// printSummary renders a final occupancy/status table, mostly so the
// demo has something to show besides log lines.
func printSummary(threads []*proc.Thread, alloc *memory.FrameAllocator) {
	tbl := table.New("id", "name", "priority", "status")
	for _, t := range threads {
		tbl.AddRow(t.ID, t.Name, t.Priority, t.Status)
	}
	tbl.Print()

	fmt.Printf("free frames: %d\n", alloc.FreeCount())
}

// spawnThreads loads one address space per synthetic process from the
// same program image -- a stand-in for the initial processes a real
// kernel would admit from a batch script -- and wraps each in a thread
// with a descending initial priority so the demo exercises all three
// queue levels.
func spawnThreads(of *fs.OpenFile, alloc *memory.FrameAllocator, m machine.Machine, cfg *config.Config) []*proc.Thread {
	priorities := []int{120, 75, 20}
	burst := []float64{600, 900, 1500}

	var threads []*proc.Thread
	for i, priority := range priorities {
		as := &memory.AddressSpace{}
		exc, err := as.Load(of, alloc, m.MainMemory(), cfg.PageSize, cfg.NumPhysPages, cfg.UserStackSize)
		if err != nil {
			klog.ErrorLog.Error("loading address space", "error", err)
			continue
		}
		if exc != memory.NoException {
			klog.ErrorLog.Error("address space load raised an exception", "exception", exc.String())
			continue
		}

		t := proc.NewThread(i+1, fmt.Sprintf("proc-%d", i+1), priority, burst[i])
		t.Space = as
		t.RemainBurst = int(t.ApproxBurst)
		threads = append(threads, t)
	}
	return threads
}

// run dispatches threads until every ready queue is empty, ticking the
// clock by each dispatched thread's remaining burst, aging the ready
// queues between dispatches, and reclaiming a finished thread's address
// space as soon as the scheduler hands it back. A sentinel idle thread
// stands in as the "next" target on the final handoff, since Run always
// needs a thread to switch into even when there is nothing left ready.
func run(scheduler *proc.Scheduler, alloc *memory.FrameAllocator, m machine.Machine, cfg *config.Config) {
	idle := proc.NewThread(-1, "idle", 0, 0)
	now := 0

	scheduler.DisableInterrupts()
	current := scheduler.ScheduleNext()
	var reclaimed *proc.Thread
	if current != nil {
		reclaimed = scheduler.Run(current, false, now, m)
	}
	scheduler.EnableInterrupts()
	reclaim(reclaimed, alloc)

	for current != nil && current != idle {
		quantum := current.RemainBurst
		if quantum > cfg.L3QuantumTicks && current.WhichQueue() == 3 {
			quantum = cfg.L3QuantumTicks
		}

		now += quantum
		current.RemainBurst -= quantum
		finishing := current.RemainBurst <= 0

		scheduler.DisableInterrupts()
		scheduler.Aging(now)

		if finishing {
			klog.InfoLog.Info("thread finished", "id", current.ID, "at", now)
		} else {
			current.Block(now, cfg.BurstAlpha)
			scheduler.PutToReady(current, now)
		}

		next := scheduler.ScheduleNext()
		if next == nil {
			next = idle
		}
		reclaimed = scheduler.Run(next, finishing, now, m)
		scheduler.EnableInterrupts()
		reclaim(reclaimed, alloc)

		current = next
	}

	// Whichever thread finished last was parked by the handoff into idle
	// above; nothing else will call Run to drain it, so do it explicitly.
	scheduler.DisableInterrupts()
	reclaimed = scheduler.Run(idle, false, now, m)
	scheduler.EnableInterrupts()
	reclaim(reclaimed, alloc)
}

func reclaim(t *proc.Thread, alloc *memory.FrameAllocator) {
	if t == nil || t.Space == nil {
		return
	}
	t.Space.Destroy(alloc)
}
