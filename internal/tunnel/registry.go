package tunnel

import "sync"

// Registry is a keyed pool of tunnels: one live tunnel per key. Lookup and
// creation happen under one lock, so concurrent callers for the same key can
// never create two tunnels. A failed open inserts nothing.
//
// Two registries exist per process, one for relay keys and one for forward
// keys; the allocator guarantees their local ports never collide.
type Registry struct {
	mu      sync.Mutex
	tunnels map[Key]*Tunnel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tunnels: make(map[Key]*Tunnel)}
}

// Get returns the tunnel registered under key, or opens, registers and
// returns a new one.
func (r *Registry) Get(key Key, open func() (*Tunnel, error)) (*Tunnel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tunnels[key]; ok {
		return t, nil
	}
	t, err := open()
	if err != nil {
		return nil, err
	}
	r.tunnels[key] = t
	return t, nil
}

// Release removes the tunnel registered under key and closes it. Tunnels
// have a single owning connection, so release happens exactly when that
// connection closes. Releasing an absent key is a no-op.
func (r *Registry) Release(key Key) error {
	r.mu.Lock()
	t, ok := r.tunnels[key]
	delete(r.tunnels, key)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return t.Close()
}

// Len returns the number of registered tunnels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tunnels)
}
