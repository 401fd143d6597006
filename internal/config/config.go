package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Library defaults applied when neither an explicit configuration value nor
// an ambient setting is present.
const (
	DefaultEndpoint = "unix:///var/run/docker.sock"
	DefaultTimeout  = 60 * time.Second
	DefaultSSHUser  = "root"
	DefaultSSHPort  = 22
)

// Settings holds the ambient defaults for remote Docker access. Every field
// can be overridden per named client; precedence is explicit client value,
// then ambient setting, then library default.
type Settings struct {
	Endpoint         string        `envconfig:"ENDPOINT" default:""`
	APIVersion       string        `envconfig:"API_VERSION" default:""`
	Timeout          time.Duration `envconfig:"TIMEOUT" default:"60s"`
	TunnelRemotePort int           `envconfig:"TUNNEL_REMOTE_PORT" default:"0"`
	TunnelLocalPort  int           `envconfig:"TUNNEL_LOCAL_PORT" default:"0"`

	RegistryUser     string `envconfig:"REGISTRY_USER" default:""`
	RegistryPassword string `envconfig:"REGISTRY_PASSWORD" default:""`
	RegistryEmail    string `envconfig:"REGISTRY_EMAIL" default:""`
	RegistryURL      string `envconfig:"REGISTRY_URL" default:""`
	RegistryInsecure bool   `envconfig:"REGISTRY_INSECURE" default:"false"`

	SSHUser    string `envconfig:"SSH_USER" default:"root"`
	SSHKeyPath string `envconfig:"SSH_KEY_PATH" default:""`

	LogPath string `envconfig:"LOG_PATH" default:""`
}

// Load reads settings from DOCKBRIDGE_-prefixed environment variables.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("DOCKBRIDGE", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
