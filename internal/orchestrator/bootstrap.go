package orchestrator

import (
	"log"

	"github.com/gluk-w/dockbridge/internal/config"
	"github.com/gluk-w/dockbridge/internal/logutil"
)

// ConnectFunc materializes one engine connection for a client
// configuration. The production connector dials SSH through the remote
// manager and looks the connection up in the shared cache; tests substitute
// fakes.
type ConnectFunc func(host string, cfg config.ClientConfiguration) (ContainerClient, error)

// Bootstrap is FromConfig for a variadic list of maps.
func Bootstrap(configs map[string]config.ClientConfiguration, connect ConnectFunc, maps ...config.ContainerMap) (*Orchestration, error) {
	return FromConfig(maps, configs, connect)
}

// FromConfig materializes every client referenced by the given maps,
// exactly once per name, in declaration order. Unknown client names and
// configurations without a host binding fail before any connection attempt
// for that client; clients materialized earlier keep their connections and
// stay in the returned orchestration, so the caller can still CloseAll.
func FromConfig(maps []config.ContainerMap, configs map[string]config.ClientConfiguration, connect ConnectFunc) (*Orchestration, error) {
	o := &Orchestration{
		maps:    make(map[string]config.ContainerMap, len(maps)),
		clients: make(map[string]NamedClient),
	}
	for _, m := range maps {
		o.maps[m.Name] = m
		o.mapOrder = append(o.mapOrder, m.Name)
	}

	for _, m := range maps {
		for _, name := range m.ClientNames() {
			if _, ok := o.clients[name]; ok {
				continue
			}
			cfg, ok := configs[name]
			if !ok {
				return o, configErrorf("client %q used in map %q not configured", name, m.Name)
			}
			if cfg.Host == "" {
				return o, configErrorf("client %q is configured, but has no host binding", name)
			}

			log.Printf("[bootstrap] connecting client %s (%s)", logutil.Sanitize(name), logutil.Sanitize(cfg.Host))
			conn, err := connect(cfg.Host, cfg)
			if err != nil {
				return o, err
			}
			o.clients[name] = NamedClient{Conn: conn, Config: cfg}
			o.clientOrder = append(o.clientOrder, name)
		}
	}
	return o, nil
}
