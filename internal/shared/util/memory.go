package util

import (
	"fmt"
	"runtime"
)

// MemorySnapshot is the process footprint reported by the health check.
type MemorySnapshot struct {
	HeapAllocMB uint64
	HeapObjects uint64
	Goroutines  int
	NumGC       uint32
}

// ReadMemory samples runtime memory statistics.
func ReadMemory() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		HeapAllocMB: m.HeapAlloc / 1024 / 1024,
		HeapObjects: m.HeapObjects,
		Goroutines:  runtime.NumGoroutine(),
		NumGC:       m.NumGC,
	}
}

func (s MemorySnapshot) String() string {
	return fmt.Sprintf("%d MB heap, %d objects, %d goroutines, %d GC cycles", s.HeapAllocMB, s.HeapObjects, s.Goroutines, s.NumGC)
}
