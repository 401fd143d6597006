package tunnel

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrNoFreePort is returned when no local port can be bound for a tunnel.
var ErrNoFreePort = errors.New("no free local port")

// Allocator hands out bound local listeners for tunnels. It is the single
// process-wide authority for tunnel-local ports: a port stays reserved until
// the tunnel that owns it releases it, so two live tunnels can never share
// one.
type Allocator struct {
	mu       sync.Mutex
	reserved map[int]bool
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{reserved: make(map[int]bool)}
}

// Acquire binds a loopback listener on the requested port if it is free and
// unreserved, or on an ephemeral free port otherwise. The returned port is
// reserved until Release is called.
func (a *Allocator) Acquire(requested int) (net.Listener, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if requested > 0 && !a.reserved[requested] {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", requested))
		if err == nil {
			a.reserved[requested] = true
			return ln, requested, nil
		}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoFreePort, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	a.reserved[port] = true
	return ln, port, nil
}

// Release frees the reservation for a port. Called exactly once, by the
// tunnel that owned it, when the tunnel closes.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

// Reserved reports whether the port is currently held by a tunnel.
func (a *Allocator) Reserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved[port]
}
