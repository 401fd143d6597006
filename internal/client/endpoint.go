package client

import (
	"net"
	"net/url"
	"strings"
)

// isUnixEndpoint reports whether the endpoint names a Unix socket on the
// remote filesystem: an http+unix: or unix: URL, or a bare path.
func isUnixEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http+unix:") ||
		strings.HasPrefix(endpoint, "unix:") ||
		strings.HasPrefix(endpoint, "/")
}

// socketPath extracts the socket path from a Unix-style endpoint.
func socketPath(endpoint string) string {
	s := endpoint
	if rest, ok := strings.CutPrefix(s, "http+unix:"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "unix:"); ok {
		s = rest
	}
	// unix:///var/run/docker.sock leaves extra slashes behind the scheme.
	for strings.HasPrefix(s, "//") {
		s = s[1:]
	}
	return s
}

// endpointHost extracts the host component of a TCP-style endpoint, without
// the port.
func endpointHost(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Hostname()
	}
	if host, _, err := net.SplitHostPort(endpoint); err == nil {
		return host
	}
	return endpoint
}

// directConnectURL normalizes an endpoint for a tunnel-less connection into
// a form the Docker client accepts.
func directConnectURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "/") {
		return "unix://" + endpoint
	}
	if strings.HasPrefix(endpoint, "http+unix:") {
		return "unix://" + socketPath(endpoint)
	}
	return endpoint
}
