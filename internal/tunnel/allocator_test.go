package tunnel

import (
	"sync"
	"testing"
)

func TestAllocatorHonorsRequestedPort(t *testing.T) {
	a := NewAllocator()

	ln, port, err := a.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire(0): %v", err)
	}
	defer ln.Close()
	if port == 0 {
		t.Fatal("expected a concrete ephemeral port")
	}

	// Re-requesting the same free port after release must succeed.
	_ = ln.Close()
	a.Release(port)
	ln2, port2, err := a.Acquire(port)
	if err != nil {
		t.Fatalf("Acquire(%d): %v", port, err)
	}
	defer ln2.Close()
	if port2 != port {
		t.Errorf("expected requested port %d, got %d", port, port2)
	}
}

func TestAllocatorSubstitutesBusyPort(t *testing.T) {
	a := NewAllocator()

	ln1, port1, err := a.Acquire(0)
	if err != nil {
		t.Fatal(err)
	}
	defer ln1.Close()

	// The port is held by a live tunnel; the allocator must hand out a
	// different free one.
	ln2, port2, err := a.Acquire(port1)
	if err != nil {
		t.Fatalf("Acquire(%d): %v", port1, err)
	}
	defer ln2.Close()
	if port2 == port1 {
		t.Errorf("allocator reused a bound port: %d", port1)
	}
}

func TestAllocatorNoConcurrentDuplicates(t *testing.T) {
	a := NewAllocator()

	const n = 32
	ports := make(chan int, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ln, port, err := a.Acquire(0)
			if err != nil {
				t.Error(err)
				return
			}
			t.Cleanup(func() { _ = ln.Close() })
			ports <- port
		}()
	}
	wg.Wait()
	close(ports)

	seen := make(map[int]bool)
	for p := range ports {
		if seen[p] {
			t.Fatalf("port %d allocated twice", p)
		}
		seen[p] = true
	}
}

func TestAllocatorReservedTracking(t *testing.T) {
	a := NewAllocator()
	ln, port, err := a.Acquire(0)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if !a.Reserved(port) {
		t.Errorf("port %d should be reserved while the tunnel lives", port)
	}
	a.Release(port)
	if a.Reserved(port) {
		t.Errorf("port %d should be free after release", port)
	}
}
