package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Timeout != 60*time.Second {
		t.Errorf("expected default timeout 60s, got %s", s.Timeout)
	}
	if s.SSHUser != "root" {
		t.Errorf("expected default ssh user root, got %q", s.SSHUser)
	}
	if s.TunnelRemotePort != 0 {
		t.Errorf("expected no default tunnel remote port, got %d", s.TunnelRemotePort)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DOCKBRIDGE_ENDPOINT", "tcp://10.0.0.4:2375")
	t.Setenv("DOCKBRIDGE_TUNNEL_REMOTE_PORT", "2375")
	t.Setenv("DOCKBRIDGE_REGISTRY_USER", "deploy")
	t.Setenv("DOCKBRIDGE_TIMEOUT", "90s")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Endpoint != "tcp://10.0.0.4:2375" {
		t.Errorf("endpoint not read from env: %q", s.Endpoint)
	}
	if s.TunnelRemotePort != 2375 {
		t.Errorf("tunnel remote port not read from env: %d", s.TunnelRemotePort)
	}
	if s.RegistryUser != "deploy" {
		t.Errorf("registry user not read from env: %q", s.RegistryUser)
	}
	if s.Timeout != 90*time.Second {
		t.Errorf("timeout not read from env: %s", s.Timeout)
	}
}

func TestResolvePrecedence(t *testing.T) {
	ambient := Settings{
		Endpoint:         "tcp://ambient:2375",
		APIVersion:       "1.41",
		Timeout:          30 * time.Second,
		TunnelRemotePort: 2375,
		RegistryUser:     "ambient-user",
	}

	// Explicit values win over ambient ones.
	c := ClientConfiguration{
		Endpoint:         "unix:///var/run/docker.sock",
		Timeout:          10 * time.Second,
		TunnelRemotePort: 2376,
	}
	r := c.Resolve(ambient)
	if r.Endpoint != "unix:///var/run/docker.sock" {
		t.Errorf("explicit endpoint overridden: %q", r.Endpoint)
	}
	if r.Timeout != 10*time.Second {
		t.Errorf("explicit timeout overridden: %s", r.Timeout)
	}
	if r.TunnelRemotePort != 2376 {
		t.Errorf("explicit remote port overridden: %d", r.TunnelRemotePort)
	}

	// Ambient values fill unset fields.
	if r.APIVersion != "1.41" {
		t.Errorf("ambient api version not applied: %q", r.APIVersion)
	}
	if r.Registry.User != "ambient-user" {
		t.Errorf("ambient registry user not applied: %q", r.Registry.User)
	}

	// Library defaults apply when both are unset.
	r2 := ClientConfiguration{}.Resolve(Settings{})
	if r2.Endpoint != DefaultEndpoint {
		t.Errorf("default endpoint not applied: %q", r2.Endpoint)
	}
	if r2.Timeout != DefaultTimeout {
		t.Errorf("default timeout not applied: %s", r2.Timeout)
	}
}

func TestResolveDoesNotMutateOriginal(t *testing.T) {
	c := ClientConfiguration{Host: "deploy@10.0.0.4"}
	_ = c.Resolve(Settings{Endpoint: "tcp://x:1"})
	if c.Endpoint != "" {
		t.Errorf("Resolve mutated the original configuration: %q", c.Endpoint)
	}
}
