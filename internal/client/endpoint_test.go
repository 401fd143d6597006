package client

import "testing"

func TestIsUnixEndpoint(t *testing.T) {
	cases := []struct {
		endpoint string
		want     bool
	}{
		{"unix:///var/run/docker.sock", true},
		{"unix:/var/run/docker.sock", true},
		{"http+unix:///var/run/docker.sock", true},
		{"/var/run/docker.sock", true},
		{"tcp://10.0.0.5:2375", false},
		{"http://docker.example.com:2375", false},
	}
	for _, tc := range cases {
		if got := isUnixEndpoint(tc.endpoint); got != tc.want {
			t.Errorf("isUnixEndpoint(%q) = %v, want %v", tc.endpoint, got, tc.want)
		}
	}
}

func TestSocketPath(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{"unix:///var/run/docker.sock", "/var/run/docker.sock"},
		{"unix:/var/run/docker.sock", "/var/run/docker.sock"},
		{"http+unix:///var/run/docker.sock", "/var/run/docker.sock"},
		{"/var/run/docker.sock", "/var/run/docker.sock"},
	}
	for _, tc := range cases {
		if got := socketPath(tc.endpoint); got != tc.want {
			t.Errorf("socketPath(%q) = %q, want %q", tc.endpoint, got, tc.want)
		}
	}
}

func TestEndpointHost(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{"tcp://10.0.0.5:2375", "10.0.0.5"},
		{"http://docker.example.com:2375", "docker.example.com"},
		{"docker.example.com:2375", "docker.example.com"},
		{"docker.example.com", "docker.example.com"},
	}
	for _, tc := range cases {
		if got := endpointHost(tc.endpoint); got != tc.want {
			t.Errorf("endpointHost(%q) = %q, want %q", tc.endpoint, got, tc.want)
		}
	}
}

func TestDirectConnectURL(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{"/var/run/docker.sock", "unix:///var/run/docker.sock"},
		{"http+unix:///var/run/docker.sock", "unix:///var/run/docker.sock"},
		{"unix:///var/run/docker.sock", "unix:///var/run/docker.sock"},
		{"tcp://10.0.0.5:2375", "tcp://10.0.0.5:2375"},
	}
	for _, tc := range cases {
		if got := directConnectURL(tc.endpoint); got != tc.want {
			t.Errorf("directConnectURL(%q) = %q, want %q", tc.endpoint, got, tc.want)
		}
	}
}
