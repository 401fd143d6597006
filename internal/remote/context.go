package remote

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/ssh"
)

// Context is the explicit remote-execution context: which remote host the
// current operation runs against, bound to the Manager that owns the SSH
// connection pool. It is passed as a value through every call that needs
// remote access; there is no ambient global.
type Context struct {
	// Host is the remote-host binding in [user@]host[:port] form. It is the
	// host component of every connection-cache and tunnel key derived from
	// this context.
	Host string

	mgr *Manager
}

// Dial opens a connection to addr as seen from the remote host, over a
// direct-tcpip channel of the shared SSH transport.
func (c *Context) Dial(network, addr string) (net.Conn, error) {
	client, err := c.mgr.Client(c.Host)
	if err != nil {
		return nil, err
	}
	conn, err := client.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("remote dial %s via %s: %w", addr, c.Host, err)
	}
	return conn, nil
}

// Process is a command running on the remote host. Closing it signals the
// command and releases the underlying session.
type Process struct {
	session *ssh.Session
	closed  bool
}

// Close terminates the remote process. Safe to call more than once.
func (p *Process) Close() error {
	if p == nil || p.closed {
		return nil
	}
	p.closed = true
	// Best effort: ask the remote side to stop before tearing the session down.
	_ = p.session.Signal(ssh.SIGTERM)
	if err := p.session.Close(); err != nil && err != io.EOF {
		return fmt.Errorf("close remote process: %w", err)
	}
	return nil
}

// Start runs cmd on the remote host without waiting for it to finish. The
// returned Process keeps the session open until closed.
func (c *Context) Start(cmd string) (*Process, error) {
	client, err := c.mgr.Client(c.Host)
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("remote session on %s: %w", c.Host, err)
	}
	if err := session.Start(cmd); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("start %q on %s: %w", cmd, c.Host, err)
	}
	return &Process{session: session}, nil
}
