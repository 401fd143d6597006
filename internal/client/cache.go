package client

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gluk-w/dockbridge/internal/config"
	"github.com/gluk-w/dockbridge/internal/remote"
)

// Key identifies one cached engine connection: the remote host it runs on
// and the endpoint configured for it. Two hosts sharing an endpoint string,
// or two endpoints on one host, are distinct connections.
type Key struct {
	Host     string
	Endpoint string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Host, k.Endpoint)
}

// Cache holds one DockerClient per key, created lazily on first use.
// Concurrent lookups of the same key share a single construction.
type Cache struct {
	mu    sync.Mutex
	conns map[Key]*DockerClient
	sf    singleflight.Group
}

func NewCache() *Cache {
	return &Cache{conns: make(map[Key]*DockerClient)}
}

// Get returns the cached connection for rctx's host and cfg's endpoint,
// creating it if needed. cfg must already be resolved against the ambient
// settings. A failed construction is not cached.
func (p *Cache) Get(rctx *remote.Context, cfg config.ClientConfiguration, pools *Pools) (*DockerClient, error) {
	key := Key{Host: rctx.Host, Endpoint: cfg.Endpoint}
	return p.getOrCreate(key, func() (*DockerClient, error) {
		return New(rctx, cfg, pools)
	})
}

func (p *Cache) getOrCreate(key Key, construct func() (*DockerClient, error)) (*DockerClient, error) {
	p.mu.Lock()
	if c, ok := p.conns[key]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	v, err, _ := p.sf.Do(key.String(), func() (any, error) {
		p.mu.Lock()
		if c, ok := p.conns[key]; ok {
			p.mu.Unlock()
			return c, nil
		}
		p.mu.Unlock()

		c, err := construct()
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.conns[key] = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DockerClient), nil
}

// Invalidate removes the connection for key and closes it. Removal happens
// before the close, so a concurrent Get creates a fresh connection instead
// of handing out the closing one.
func (p *Cache) Invalidate(key Key) error {
	p.mu.Lock()
	c, ok := p.conns[key]
	if ok {
		delete(p.conns, key)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Close()
}

// CloseAll invalidates every cached connection, returning the first error.
func (p *Cache) CloseAll() error {
	p.mu.Lock()
	conns := make([]*DockerClient, 0, len(p.conns))
	for key, c := range p.conns {
		conns = append(conns, c)
		delete(p.conns, key)
	}
	p.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports the number of live cached connections.
func (p *Cache) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
