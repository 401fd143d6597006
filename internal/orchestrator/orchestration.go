package orchestrator

import (
	"context"
	"fmt"

	dockerclient "github.com/docker/docker/client"

	"github.com/gluk-w/dockbridge/internal/client"
	"github.com/gluk-w/dockbridge/internal/config"
)

// Re-exports so orchestration callers work with one package.
type (
	ContainerMap    = config.ContainerMap
	ContainerConfig = config.ContainerConfig
)

// ContainerClient is the slice of engine operations the orchestration layer
// drives. *client.DockerClient satisfies it.
type ContainerClient interface {
	CreateContainer(ctx context.Context, opts client.CreateOptions) (string, error)
	StartContainer(ctx context.Context, name string) error
	StopContainer(ctx context.Context, name string, timeout int) error
	RemoveContainer(ctx context.Context, name string, force bool) error
	PullImage(ctx context.Context, ref string) error
	Close() error
}

// NamedClient pairs a materialized connection with the configuration it was
// built from.
type NamedClient struct {
	Conn   ContainerClient
	Config config.ClientConfiguration
}

// Orchestration binds container maps to their materialized clients and
// applies container operations across them.
type Orchestration struct {
	maps     map[string]config.ContainerMap
	mapOrder []string

	clients     map[string]NamedClient
	clientOrder []string
}

// Client returns the materialized client with the given name.
func (o *Orchestration) Client(name string) (NamedClient, bool) {
	c, ok := o.clients[name]
	return c, ok
}

// ClientNames returns the materialized client names in establishment order.
func (o *Orchestration) ClientNames() []string {
	return append([]string(nil), o.clientOrder...)
}

// Create creates the named container's instances on every client bound to
// it. instances overrides the configured instance list when non-empty.
func (o *Orchestration) Create(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		_, err := conn.CreateContainer(ctx, createOptions(cc, name))
		return err
	})
}

// Start starts the named container's instances on every bound client.
func (o *Orchestration) Start(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		return conn.StartContainer(ctx, name)
	})
}

// Stop stops the named container's instances on every bound client.
func (o *Orchestration) Stop(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		return conn.StopContainer(ctx, name, 0)
	})
}

// Remove removes the named container's instances on every bound client.
func (o *Orchestration) Remove(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		return conn.RemoveContainer(ctx, name, false)
	})
}

// Startup creates and starts the named container's instances.
func (o *Orchestration) Startup(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		if _, err := conn.CreateContainer(ctx, createOptions(cc, name)); err != nil {
			return err
		}
		return conn.StartContainer(ctx, name)
	})
}

// Shutdown stops and removes the named container's instances.
func (o *Orchestration) Shutdown(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		if err := conn.StopContainer(ctx, name, 0); err != nil && !dockerclient.IsErrNotFound(err) {
			return err
		}
		return conn.RemoveContainer(ctx, name, false)
	})
}

// Update pulls the container's image fresh, replaces the instances, and
// starts them again. A missing old instance is not an error.
func (o *Orchestration) Update(ctx context.Context, mapName, configName string, instances ...string) error {
	return o.each(mapName, configName, instances, func(conn ContainerClient, cc config.ContainerConfig, name string) error {
		if err := conn.PullImage(ctx, cc.Image); err != nil {
			return err
		}
		if err := conn.StopContainer(ctx, name, 0); err != nil && !dockerclient.IsErrNotFound(err) {
			return err
		}
		if err := conn.RemoveContainer(ctx, name, false); err != nil && !dockerclient.IsErrNotFound(err) {
			return err
		}
		if _, err := conn.CreateContainer(ctx, createOptions(cc, name)); err != nil {
			return err
		}
		return conn.StartContainer(ctx, name)
	})
}

// Perform dispatches an operation by name.
func (o *Orchestration) Perform(ctx context.Context, action, mapName, configName string, instances ...string) error {
	switch action {
	case "create":
		return o.Create(ctx, mapName, configName, instances...)
	case "start":
		return o.Start(ctx, mapName, configName, instances...)
	case "stop":
		return o.Stop(ctx, mapName, configName, instances...)
	case "remove":
		return o.Remove(ctx, mapName, configName, instances...)
	case "startup":
		return o.Startup(ctx, mapName, configName, instances...)
	case "shutdown":
		return o.Shutdown(ctx, mapName, configName, instances...)
	case "update":
		return o.Update(ctx, mapName, configName, instances...)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// CloseAll closes every materialized connection, returning the first error.
func (o *Orchestration) CloseAll() error {
	var firstErr error
	for _, name := range o.clientOrder {
		if err := o.clients[name].Conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// each resolves the container config and its bound clients, then applies fn
// per client and instance, stopping at the first error.
func (o *Orchestration) each(mapName, configName string, instances []string, fn func(conn ContainerClient, cc config.ContainerConfig, name string) error) error {
	m, ok := o.maps[mapName]
	if !ok {
		return fmt.Errorf("unknown map %q", mapName)
	}
	cc, ok := m.Container(configName)
	if !ok {
		return fmt.Errorf("container %q not in map %q", configName, mapName)
	}

	boundTo := cc.Clients
	if len(boundTo) == 0 {
		boundTo = m.Clients
	}
	if len(boundTo) == 0 {
		return configErrorf("container %q in map %q has no client bindings", configName, mapName)
	}

	names := instances
	if len(names) == 0 {
		names = cc.Instances
	}

	for _, clientName := range boundTo {
		nc, ok := o.clients[clientName]
		if !ok {
			return configErrorf("client %q used in map %q not configured", clientName, mapName)
		}
		for _, instance := range instanceNames(cc.Name, names) {
			if err := fn(nc.Conn, cc, instance); err != nil {
				return err
			}
		}
	}
	return nil
}

// instanceNames expands a container config name into its instance container
// names. No instances means a single container named after the config.
func instanceNames(configName string, instances []string) []string {
	if len(instances) == 0 {
		return []string{configName}
	}
	names := make([]string, len(instances))
	for i, inst := range instances {
		names[i] = configName + "." + inst
	}
	return names
}

// createOptions maps a container config to engine create options for one
// named instance.
func createOptions(cc config.ContainerConfig, name string) client.CreateOptions {
	return client.CreateOptions{
		Name:    name,
		Image:   cc.Image,
		Env:     cc.Env,
		Command: cc.Command,
		Ports:   cc.Ports,
		Binds:   cc.Binds,
		Memory:  cc.Memory,
		ShmSize: cc.ShmSize,
	}
}
