package testutil

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHClientFor dials the test SSH server and returns a connected client.
func SSHClientFor(t *testing.T, addr string) *ssh.Client {
	t.Helper()

	cfg := &ssh.ClientConfig{
		User:            "test",
		Auth:            []ssh.AuthMethod{ssh.Password("test")},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	}
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		t.Fatalf("dial test ssh server: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// WriteTestKey writes a fresh PEM-encoded RSA private key into dir and
// returns its path.
func WriteTestKey(t *testing.T, dir string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	path := filepath.Join(dir, "id_rsa")
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// StartEchoServer starts a loopback TCP server that echoes every connection
// back to the sender. It is shut down when the test finishes.
func StartEchoServer(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						if _, werr := c.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()

	return ln
}

// AssertEcho writes payload to w and expects to read it back from r.
func AssertEcho(t *testing.T, r interface{ Read([]byte) (int, error) }, w interface{ Write([]byte) (int, error) }, payload []byte) {
	t.Helper()

	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, len(payload))
	total := 0
	for total < len(payload) {
		n, err := r.Read(got[total:])
		if err != nil {
			t.Fatalf("read after %d bytes: %v", total, err)
		}
		total += n
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("echo mismatch: sent %q, got %q", payload, got)
	}
}
