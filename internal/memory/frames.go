// Package memory implements frame allocation and per-process address
// spaces: NOFF image loading, address translation, and the register/stack
// initialization a freshly loaded process needs before it can run.
package memory

import (
	"fmt"
	"sync"

	"github.com/huiyuiui/NachOS/internal/klog"
)

// FrameAllocator tracks which physical page frames are free and hands
// out single frames at a time, zero-filling each one before it's claimed.
type FrameAllocator struct {
	mu      sync.Mutex
	free    []bool
	mem     []byte
	pageSz  int
	nframes int
}

// NewFrameAllocator creates an allocator over numFrames frames of pageSize
// bytes each, backed by mainMemory (the simulated machine's memory array).
func NewFrameAllocator(numFrames, pageSize int, mainMemory []byte) *FrameAllocator {
	free := make([]bool, numFrames)
	for i := range free {
		free[i] = true
	}
	return &FrameAllocator{
		free:    free,
		mem:     mainMemory,
		pageSz:  pageSize,
		nframes: numFrames,
	}
}

// Alloc finds any free frame, zero-fills its backing bytes, and returns
// its index. Returns (-1, false) when no frame is free.
func (a *FrameAllocator) Alloc() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, isFree := range a.free {
		if isFree {
			a.free[i] = false
			start := i * a.pageSz
			for j := start; j < start+a.pageSz; j++ {
				a.mem[j] = 0
			}
			klog.InfoLog.Info("frame allocated", "frame", i)
			return i, true
		}
	}

	klog.ErrorLog.Error("no free frames available")
	return -1, false
}

// Free releases a frame back to the pool. Freeing an already-free frame
// or an out-of-range index is a programming error and panics rather than
// returning an error a caller might ignore.
func (a *FrameAllocator) Free(frame int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if frame < 0 || frame >= a.nframes {
		panic(fmt.Sprintf("frame %d out of range [0,%d)", frame, a.nframes))
	}
	if a.free[frame] {
		panic(fmt.Sprintf("double free of frame %d", frame))
	}
	a.free[frame] = true
	klog.InfoLog.Info("frame freed", "frame", frame)
}

// FreeCount returns how many frames are currently free.
func (a *FrameAllocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, isFree := range a.free {
		if isFree {
			count++
		}
	}
	return count
}
