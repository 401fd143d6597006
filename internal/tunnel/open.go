package tunnel

import (
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/gluk-w/dockbridge/internal/logutil"
	"github.com/gluk-w/dockbridge/internal/remote"
)

// OpenForward starts a forward tunnel on the pre-bound listener: local
// connections are carried over the SSH channel to key.Host:key.RemotePort as
// seen from the remote side. On failure the listener is closed and the port
// released.
func OpenForward(rctx *remote.Context, alloc *Allocator, ln net.Listener, port int, key ForwardKey) (*Tunnel, error) {
	target := net.JoinHostPort(key.Host, strconv.Itoa(key.RemotePort))
	t := newTunnel(KindForward, rctx, alloc, ln, port, key, target, nil)
	log.Printf("[tunnel] forward tunnel %s: local:%d -> %s via %s", t.ID, port, target, logutil.Sanitize(rctx.Host))
	return t, nil
}

// OpenRelay starts a relay tunnel on the pre-bound listener: a socat process
// on the remote host bridges the Unix socket to the remote loopback port,
// and local connections are carried to that port over the SSH channel. On
// failure the listener is closed and the port released.
func OpenRelay(rctx *remote.Context, alloc *Allocator, ln net.Listener, port int, key RelayKey) (*Tunnel, error) {
	proc, err := rctx.Start(socatCommand(port, key.Socket))
	if err != nil {
		_ = ln.Close()
		alloc.Release(port)
		return nil, fmt.Errorf("start socket relay on %s: %w", logutil.Sanitize(rctx.Host), err)
	}

	target := fmt.Sprintf("127.0.0.1:%d", port)
	t := newTunnel(KindRelay, rctx, alloc, ln, port, key, target, proc)
	log.Printf("[tunnel] relay tunnel %s: local:%d -> %s via %s", t.ID, port, logutil.Sanitize(key.Socket), logutil.Sanitize(rctx.Host))
	return t, nil
}

// socatCommand builds the remote command bridging a Unix socket to a TCP
// port on the remote loopback. The remote port mirrors the local one.
func socatCommand(port int, socket string) string {
	return fmt.Sprintf("socat TCP-LISTEN:%d,bind=127.0.0.1,reuseaddr,fork UNIX-CONNECT:%s", port, socket)
}
