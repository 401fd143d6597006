package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

type directTCPIPPayload struct {
	Host       string
	Port       uint32
	OriginHost string
	OriginPort uint32
}

// SSHServer is an in-memory SSH server for tests. It accepts any public key
// or password, serves direct-tcpip channels by dialing the requested target
// locally, and accepts exec requests on session channels without running
// anything (recording the command line instead).
type SSHServer struct {
	Addr   string
	Signer ssh.Signer

	ln net.Listener

	mu    sync.Mutex
	execs []string
}

// ExecCommands returns the exec command lines received so far.
func (s *SSHServer) ExecCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.execs))
	copy(out, s.execs)
	return out
}

// StartSSHServer starts an SSHServer on a loopback port. It is shut down
// when the test finishes.
func StartSSHServer(t *testing.T) *SSHServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
		PasswordCallback: func(ssh.ConnMetadata, []byte) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := &SSHServer{Addr: ln.Addr().String(), Signer: signer, ln: ln}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(c, cfg)
		}
	}()

	return srv
}

func (s *SSHServer) handleConn(c net.Conn, cfg *ssh.ServerConfig) {
	defer c.Close()

	_, chans, reqs, err := ssh.NewServerConn(c, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		switch newChan.ChannelType() {
		case "direct-tcpip":
			go s.handleDirectTCPIP(newChan)
		case "session":
			go s.handleSession(newChan)
		default:
			_ = newChan.Reject(ssh.UnknownChannelType, "unsupported channel")
		}
	}
}

func (s *SSHServer) handleDirectTCPIP(newChan ssh.NewChannel) {
	var p directTCPIPPayload
	if err := ssh.Unmarshal(newChan.ExtraData(), &p); err != nil {
		_ = newChan.Reject(ssh.Prohibited, "bad direct-tcpip payload")
		return
	}

	dst, err := net.Dial("tcp", net.JoinHostPort(p.Host, fmt.Sprint(p.Port)))
	if err != nil {
		_ = newChan.Reject(ssh.ConnectionFailed, "dial failed")
		return
	}

	ch, chReqs, err := newChan.Accept()
	if err != nil {
		_ = dst.Close()
		return
	}
	go ssh.DiscardRequests(chReqs)

	go func() {
		defer ch.Close()
		defer dst.Close()
		_, _ = io.Copy(ch, dst)
	}()
	_, _ = io.Copy(dst, ch)
	_ = dst.Close()
	_ = ch.Close()
}

func (s *SSHServer) handleSession(newChan ssh.NewChannel) {
	ch, chReqs, err := newChan.Accept()
	if err != nil {
		return
	}
	defer ch.Close()

	for req := range chReqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			s.mu.Lock()
			s.execs = append(s.execs, payload.Command)
			s.mu.Unlock()
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
			// Keep the channel open; the "process" runs until the client
			// closes the session.
		case "signal":
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}
