package config

import "time"

// RegistryAuth holds image registry credentials for login, pull and push.
// Unset fields fall back to the ambient Settings at call time.
type RegistryAuth struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
	URL      string `yaml:"url"`
	Insecure bool   `yaml:"insecure"`
}

// ClientConfiguration is the named, immutable record of connection
// parameters for one remote Docker engine. It is looked up by name from the
// clients section of the configuration file and never mutated after load.
type ClientConfiguration struct {
	// Host is the remote-host binding in [user@]host[:port] form. A client
	// without a host binding cannot be materialized by the bootstrapper.
	Host string `yaml:"host"`

	// Endpoint is the Docker engine endpoint as seen from the remote host,
	// e.g. unix:///var/run/docker.sock or tcp://127.0.0.1:2375.
	Endpoint string `yaml:"endpoint"`

	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`

	// TunnelRemotePort enables tunneling when non-zero. TunnelLocalPort is
	// a hint only; the allocator substitutes a free port when it is taken.
	TunnelRemotePort int `yaml:"tunnel_remote_port"`
	TunnelLocalPort  int `yaml:"tunnel_local_port"`

	Registry RegistryAuth `yaml:"registry"`

	// Extra carries passthrough defaults for container creation, such as
	// "memory" and "shm_size" (go-units strings).
	Extra map[string]string `yaml:"extra"`
}

// Resolve returns a copy of c with ambient settings and library defaults
// applied to every unset field. Explicit values always win.
func (c ClientConfiguration) Resolve(ambient Settings) ClientConfiguration {
	out := c
	if out.Endpoint == "" {
		out.Endpoint = ambient.Endpoint
	}
	if out.Endpoint == "" {
		out.Endpoint = DefaultEndpoint
	}
	if out.APIVersion == "" {
		out.APIVersion = ambient.APIVersion
	}
	if out.Timeout == 0 {
		out.Timeout = ambient.Timeout
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if out.TunnelRemotePort == 0 {
		out.TunnelRemotePort = ambient.TunnelRemotePort
	}
	if out.TunnelLocalPort == 0 {
		out.TunnelLocalPort = ambient.TunnelLocalPort
	}
	if out.Registry.User == "" {
		out.Registry.User = ambient.RegistryUser
	}
	if out.Registry.Password == "" {
		out.Registry.Password = ambient.RegistryPassword
	}
	if out.Registry.Email == "" {
		out.Registry.Email = ambient.RegistryEmail
	}
	if out.Registry.URL == "" {
		out.Registry.URL = ambient.RegistryURL
	}
	if !out.Registry.Insecure {
		out.Registry.Insecure = ambient.RegistryInsecure
	}
	return out
}
