package remote

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// HostSpec is a parsed remote-host binding.
type HostSpec struct {
	User string
	Host string
	Port int
}

// ParseHostSpec parses a [user@]host[:port] binding, filling the user and
// port from defaults when absent.
func ParseHostSpec(spec, defaultUser string, defaultPort int) (HostSpec, error) {
	if spec == "" {
		return HostSpec{}, fmt.Errorf("parse host: empty host binding")
	}

	hs := HostSpec{User: defaultUser, Port: defaultPort}

	rest := spec
	if i := strings.Index(rest, "@"); i >= 0 {
		hs.User = rest[:i]
		rest = rest[i+1:]
	}

	if host, port, err := net.SplitHostPort(rest); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return HostSpec{}, fmt.Errorf("parse host %q: invalid port %q", spec, port)
		}
		hs.Host = host
		hs.Port = p
	} else {
		hs.Host = rest
	}

	if hs.Host == "" {
		return HostSpec{}, fmt.Errorf("parse host %q: no host component", spec)
	}
	if hs.User == "" {
		return HostSpec{}, fmt.Errorf("parse host %q: no user", spec)
	}
	return hs, nil
}

// Addr returns the host:port dial address.
func (h HostSpec) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}
