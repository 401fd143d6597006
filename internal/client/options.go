package client

import (
	"fmt"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"
)

// CreateOptions describes one container to create. Size fields take
// go-units strings ("512m", "2g"); Ports takes docker port specs
// ("8080:80", "127.0.0.1:9000:9000/tcp").
type CreateOptions struct {
	Name    string
	Image   string
	Env     map[string]string
	Command []string
	Ports   []string
	Binds   []string
	Memory  string
	ShmSize string
}

// containerConfigs translates CreateOptions into the Docker API config pair.
func containerConfigs(opts CreateOptions) (*container.Config, *container.HostConfig, error) {
	exposed, bindings, err := nat.ParsePortSpecs(opts.Ports)
	if err != nil {
		return nil, nil, fmt.Errorf("parse port specs: %w", err)
	}

	var env []string
	for k := range opts.Env {
		env = append(env, k)
	}
	sort.Strings(env)
	for i, k := range env {
		env[i] = k + "=" + opts.Env[k]
	}

	cfg := &container.Config{
		Image:        opts.Image,
		Env:          env,
		Cmd:          opts.Command,
		ExposedPorts: exposed,
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Binds:        opts.Binds,
	}
	if opts.Memory != "" {
		mem, err := units.RAMInBytes(opts.Memory)
		if err != nil {
			return nil, nil, fmt.Errorf("parse memory %q: %w", opts.Memory, err)
		}
		hostCfg.Resources.Memory = mem
	}
	if opts.ShmSize != "" {
		shm, err := units.RAMInBytes(opts.ShmSize)
		if err != nil {
			return nil, nil, fmt.Errorf("parse shm_size %q: %w", opts.ShmSize, err)
		}
		hostCfg.ShmSize = shm
	}

	return cfg, hostCfg, nil
}
