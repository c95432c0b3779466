package util

import (
	"strings"
	"testing"
)

func TestReadMemory(t *testing.T) {
	done := make(chan struct{})
	started := make(chan struct{})
	go func() {
		close(started)
		<-done
	}()
	<-started
	defer close(done)

	snap := ReadMemory()
	if snap.Goroutines < 2 {
		t.Fatalf("expected at least 2 goroutines, got %d", snap.Goroutines)
	}
	if snap.HeapObjects == 0 {
		t.Fatal("expected live heap objects")
	}
	if !strings.Contains(snap.String(), "goroutines") {
		t.Fatalf("unexpected summary %q", snap.String())
	}
}
