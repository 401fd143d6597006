package config

// ContainerMap is a named grouping of container configurations sharing
// client bindings. Maps are kept in declaration order so that repeated
// bootstraps establish connections in the same order.
type ContainerMap struct {
	Name string `yaml:"name"`

	// Clients are the map-level default client names, in declaration order.
	Clients []string `yaml:"clients"`

	Containers []ContainerConfig `yaml:"containers"`
}

// ContainerConfig describes one workload inside a container map.
type ContainerConfig struct {
	Name  string `yaml:"name"`
	Image string `yaml:"image"`

	// Clients overrides the map-level client bindings for this container.
	Clients []string `yaml:"clients"`

	// Instances lists named instances; empty means a single instance named
	// after the container config itself.
	Instances []string `yaml:"instances"`

	Ports   []string          `yaml:"ports"` // docker port specs, e.g. "8080:80"
	Env     map[string]string `yaml:"env"`
	Binds   []string          `yaml:"binds"`
	Command []string          `yaml:"command"`

	Memory  string `yaml:"memory"`   // go-units size string, e.g. "512m"
	ShmSize string `yaml:"shm_size"` // go-units size string
}

// Container returns the container config with the given name, if present.
func (m *ContainerMap) Container(name string) (ContainerConfig, bool) {
	for _, c := range m.Containers {
		if c.Name == name {
			return c, true
		}
	}
	return ContainerConfig{}, false
}

// ClientNames returns the distinct client names the map references: the
// map-level defaults followed by each container's explicit bindings, in
// declaration order, de-duplicated.
func (m *ContainerMap) ClientNames() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range m.Clients {
		add(name)
	}
	for _, c := range m.Containers {
		for _, name := range c.Clients {
			add(name)
		}
	}
	return names
}
