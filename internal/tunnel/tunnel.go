package tunnel

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gluk-w/dockbridge/internal/logutil"
	"github.com/gluk-w/dockbridge/internal/remote"
)

// Kind distinguishes the two tunnel shapes.
type Kind string

const (
	// KindRelay bridges a Unix socket on the remote host to a local TCP
	// port: a remote socat process listens on the remote loopback and the
	// local listener forwards into it over the SSH channel.
	KindRelay Kind = "relay"
	// KindForward forwards a local TCP port to a host:port pair reachable
	// from the remote side (SSH -L equivalent).
	KindForward Kind = "forward"
)

// Key identifies a tunnel within a Registry.
type Key interface {
	String() string
}

// RelayKey identifies a socket-relay tunnel.
type RelayKey struct {
	Socket    string
	LocalPort int
}

func (k RelayKey) String() string {
	return fmt.Sprintf("relay %s local:%d", k.Socket, k.LocalPort)
}

// ForwardKey identifies a local-forward tunnel. Bind is always "localhost".
type ForwardKey struct {
	Host       string
	RemotePort int
	Bind       string
	LocalPort  int
}

func (k ForwardKey) String() string {
	return fmt.Sprintf("forward %s:%d %s local:%d", k.Host, k.RemotePort, k.Bind, k.LocalPort)
}

// Tunnel is one live tunnel: a bound local listener whose connections are
// carried to the remote target over the SSH channel, plus (for relays) the
// remote socat process. Closing releases the local port for reuse.
type Tunnel struct {
	ID        string
	Kind      Kind
	Host      string // remote host binding this tunnel runs through
	LocalPort int

	key      Key
	target   string // address dialed on the remote side per connection
	listener net.Listener
	cancel   context.CancelFunc
	proc     io.Closer // remote relay process, nil for forwards
	alloc    *Allocator

	mu     sync.Mutex
	closed bool
}

// Key returns the registry key this tunnel was opened under.
func (t *Tunnel) Key() Key { return t.key }

// Close shuts the tunnel down: the local listener, the remote relay process
// (if any) and the port reservation are all released, each attempted even if
// an earlier step fails. The first error is returned. Safe to call more than
// once.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	var firstErr error
	if err := t.listener.Close(); err != nil {
		firstErr = fmt.Errorf("close tunnel listener: %w", err)
	}
	if t.proc != nil {
		if err := t.proc.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop relay process: %w", err)
		}
	}
	t.alloc.Release(t.LocalPort)

	log.Printf("[tunnel] closed %s tunnel %s on %s (local:%d)", t.Kind, t.ID, logutil.Sanitize(t.Host), t.LocalPort)
	return firstErr
}

// IsClosed reports whether Close has been called.
func (t *Tunnel) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func newTunnel(kind Kind, rctx *remote.Context, alloc *Allocator, ln net.Listener, port int, key Key, target string, proc io.Closer) *Tunnel {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tunnel{
		ID:        uuid.NewString(),
		Kind:      kind,
		Host:      rctx.Host,
		LocalPort: port,
		key:       key,
		target:    target,
		listener:  ln,
		cancel:    cancel,
		proc:      proc,
		alloc:     alloc,
	}
	go t.acceptLoop(ctx, rctx)
	return t
}

// acceptLoop accepts local connections and carries each one to the remote
// target over its own SSH channel.
func (t *Tunnel) acceptLoop(ctx context.Context, rctx *remote.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Set a deadline so we can check for context cancellation.
		if tl, ok := t.listener.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(1 * time.Second))
		}

		conn, err := t.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Printf("[tunnel] accept error on local:%d: %v", t.LocalPort, err)
			return
		}

		remoteConn, err := rctx.Dial("tcp", t.target)
		if err != nil {
			log.Printf("[tunnel] remote dial %s via %s failed: %v", t.target, logutil.Sanitize(t.Host), err)
			_ = conn.Close()
			continue
		}

		go bidirectionalCopy(ctx, conn, remoteConn)
	}
}

// bidirectionalCopy pipes data between two connections until one side closes
// or errors.
func bidirectionalCopy(ctx context.Context, a, b net.Conn) {
	done := make(chan struct{}, 2)
	cp := func(dst, src net.Conn) {
		defer func() { done <- struct{}{} }()
		_, _ = io.Copy(dst, src)
	}
	go cp(a, b)
	go cp(b, a)

	select {
	case <-done:
	case <-ctx.Done():
	}
	_ = a.Close()
	_ = b.Close()
	<-done
}
