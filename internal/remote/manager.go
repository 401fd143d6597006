package remote

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	"github.com/gluk-w/dockbridge/internal/logutil"
)

// Options configures how the Manager establishes SSH connections.
type Options struct {
	// User is the default SSH user for host bindings without one.
	User string
	// KeyPath points to an OpenSSH-format private key file.
	KeyPath string
	// Timeout bounds the TCP connect and SSH handshake.
	Timeout time.Duration
}

// Manager maintains at most one SSH client per remote-host binding. Clients
// are dialed lazily on first use and shared by every tunnel and remote
// command against that host.
type Manager struct {
	opts Options

	mu      sync.RWMutex
	clients map[string]*ssh.Client
	sf      singleflight.Group
}

// NewManager creates an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.User == "" {
		opts.User = "root"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Manager{
		opts:    opts,
		clients: make(map[string]*ssh.Client),
	}
}

// Context returns the remote-execution context for the given host binding.
func (m *Manager) Context(host string) *Context {
	return &Context{Host: host, mgr: m}
}

// Client returns the SSH client for the given host binding, dialing it on
// first use. Concurrent callers for the same host share one dial attempt.
func (m *Manager) Client(host string) (*ssh.Client, error) {
	m.mu.RLock()
	client := m.clients[host]
	m.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	v, err, _ := m.sf.Do(host, func() (any, error) {
		// Double-check in case a previous flight just finished.
		m.mu.RLock()
		c := m.clients[host]
		m.mu.RUnlock()
		if c != nil {
			return c, nil
		}

		c, err := m.dial(host)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.clients[host] = c
		m.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ssh.Client), nil
}

func (m *Manager) dial(host string) (*ssh.Client, error) {
	hs, err := ParseHostSpec(host, m.opts.User, 22)
	if err != nil {
		return nil, err
	}

	keyData, err := os.ReadFile(m.opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", m.opts.KeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            hs.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         m.opts.Timeout,
	}

	client, err := ssh.Dial("tcp", hs.Addr(), config)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", logutil.Sanitize(hs.Addr()), err)
	}

	log.Printf("[ssh] connected to %s", logutil.Sanitize(host))
	return client, nil
}

// SetClient stores an already-established SSH client for the given host
// binding, closing any previous one.
func (m *Manager) SetClient(host string, client *ssh.Client) {
	m.mu.Lock()
	old := m.clients[host]
	m.clients[host] = client
	m.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// Close closes and removes the SSH client for the given host binding.
func (m *Manager) Close(host string) error {
	m.mu.Lock()
	client, ok := m.clients[host]
	delete(m.clients, host)
	m.mu.Unlock()
	if !ok || client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("close ssh connection for %s: %w", logutil.Sanitize(host), err)
	}
	return nil
}

// CloseAll closes every SSH client and clears the pool. Returns the first
// error encountered.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*ssh.Client)
	m.mu.Unlock()

	var firstErr error
	for host, client := range clients {
		if client == nil {
			continue
		}
		if err := client.Close(); err != nil {
			log.Printf("[ssh] error closing connection for %s: %v", logutil.Sanitize(host), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ConnectionCount returns the number of live SSH clients.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
