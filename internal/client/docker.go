package client

import (
	"fmt"
	"log"
	"sync"

	dockerclient "github.com/docker/docker/client"

	"github.com/gluk-w/dockbridge/internal/config"
	"github.com/gluk-w/dockbridge/internal/logutil"
	"github.com/gluk-w/dockbridge/internal/remote"
	"github.com/gluk-w/dockbridge/internal/tunnel"
)

// Pools groups the process-wide tunnel singletons: the port allocator and
// the two tunnel registries. No component binds a port or opens a tunnel
// except through them.
type Pools struct {
	Alloc    *tunnel.Allocator
	Relays   *tunnel.Registry
	Forwards *tunnel.Registry
}

// NewPools creates the tunnel singletons.
func NewPools() *Pools {
	return &Pools{
		Alloc:    tunnel.NewAllocator(),
		Relays:   tunnel.NewRegistry(),
		Forwards: tunnel.NewRegistry(),
	}
}

// DockerClient is one logical connection to a remote Docker engine,
// optionally backed by a tunnel it owns for its lifetime. Every operation
// is a logged pass-through to the Docker client library.
type DockerClient struct {
	key Key
	url string // the endpoint actually connected to
	cfg config.ClientConfiguration
	api dockerclient.APIClient

	tun           *tunnel.Tunnel
	releaseTunnel func() error

	mu     sync.Mutex
	closed bool
}

// New constructs a connection to the engine described by cfg, reachable
// through the remote-execution context rctx. cfg must already be resolved
// against the ambient settings.
//
// Tunnel selection: a configured tunnel remote port turns tunneling on. For
// Unix-socket endpoints a relay tunnel is acquired, keyed by socket path and
// local port; for TCP endpoints a forward tunnel, keyed by
// (host, remote port, "localhost", local port). Either way the connection
// target becomes tcp://127.0.0.1:<local port>. Without a remote port the
// endpoint is connected to directly and no tunnel is owned.
func New(rctx *remote.Context, cfg config.ClientConfiguration, pools *Pools) (*DockerClient, error) {
	c := &DockerClient{
		key: Key{Host: rctx.Host, Endpoint: cfg.Endpoint},
		cfg: cfg,
	}

	if cfg.TunnelRemotePort > 0 {
		if err := c.openTunnel(rctx, cfg, pools); err != nil {
			return nil, err
		}
	} else {
		c.url = directConnectURL(cfg.Endpoint)
	}

	opts := []dockerclient.Opt{
		dockerclient.WithHost(c.url),
		dockerclient.WithTimeout(cfg.Timeout),
	}
	if cfg.APIVersion != "" {
		opts = append(opts, dockerclient.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, dockerclient.WithAPIVersionNegotiation())
	}

	api, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		if c.releaseTunnel != nil {
			_ = c.releaseTunnel()
		}
		return nil, fmt.Errorf("docker client for %s: %w", logutil.Sanitize(c.url), err)
	}
	c.api = api

	c.logf("Connected to '%s'.", c.url)
	return c, nil
}

// openTunnel allocates a local port, acquires the right kind of tunnel from
// its registry, and points the connection at the local end. A failed
// allocation or open leaves no tunnel behind.
func (c *DockerClient) openTunnel(rctx *remote.Context, cfg config.ClientConfiguration, pools *Pools) error {
	localHint := cfg.TunnelLocalPort
	if localHint == 0 {
		localHint = cfg.TunnelRemotePort
	}

	ln, port, err := pools.Alloc.Acquire(localHint)
	if err != nil {
		return fmt.Errorf("tunnel to %s: %w", logutil.Sanitize(rctx.Host), err)
	}

	if isUnixEndpoint(cfg.Endpoint) {
		key := tunnel.RelayKey{Socket: socketPath(cfg.Endpoint), LocalPort: port}
		tun, err := pools.Relays.Get(key, func() (*tunnel.Tunnel, error) {
			return tunnel.OpenRelay(rctx, pools.Alloc, ln, port, key)
		})
		if err != nil {
			return err
		}
		c.tun = tun
		c.releaseTunnel = func() error { return pools.Relays.Release(key) }
	} else {
		key := tunnel.ForwardKey{
			Host:       endpointHost(cfg.Endpoint),
			RemotePort: cfg.TunnelRemotePort,
			Bind:       "localhost",
			LocalPort:  port,
		}
		tun, err := pools.Forwards.Get(key, func() (*tunnel.Tunnel, error) {
			return tunnel.OpenForward(rctx, pools.Alloc, ln, port, key)
		})
		if err != nil {
			return err
		}
		c.tun = tun
		c.releaseTunnel = func() error { return pools.Forwards.Release(key) }
	}

	c.url = fmt.Sprintf("tcp://127.0.0.1:%d", c.tun.LocalPort)
	return nil
}

// Key returns the connection-cache key this client was created under.
func (c *DockerClient) Key() Key { return c.key }

// ConnectURL returns the endpoint the client actually connects to: the
// local tunnel end, or the configured endpoint for direct connections.
func (c *DockerClient) ConnectURL() string { return c.url }

// Tunnel returns the owned tunnel, or nil for direct connections.
func (c *DockerClient) Tunnel() *tunnel.Tunnel { return c.tun }

// Close shuts down the API connection and releases the owned tunnel. Both
// are always attempted; if both fail, the connection error is surfaced with
// the tunnel error as a secondary cause. A second Close is a no-op.
func (c *DockerClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var connErr, tunErr error
	if c.api != nil {
		connErr = c.api.Close()
	}
	if c.releaseTunnel != nil {
		tunErr = c.releaseTunnel()
	}

	if connErr == nil && tunErr == nil {
		return nil
	}
	return &CloseError{Conn: connErr, Tunnel: tunErr}
}

// logf prints one progress line prefixed with the remote host, the way all
// operation methods report what they are about to do.
func (c *DockerClient) logf(format string, args ...any) {
	log.Printf("[docker][%s] %s", logutil.Sanitize(c.key.Host), logutil.Sanitize(fmt.Sprintf(format, args...)))
}
