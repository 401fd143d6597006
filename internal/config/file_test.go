package config

import "testing"

const sampleConfig = `
clients:
  prod-a:
    host: deploy@10.0.0.4
    endpoint: unix:///var/run/docker.sock
    tunnel_remote_port: 2375
  prod-b:
    host: deploy@10.0.0.5:2222
    endpoint: tcp://127.0.0.1:2375
    api_version: "1.41"
    timeout: 90s
    registry:
      user: pusher
      url: registry.example.com
maps:
  - name: webapps
    clients: [prod-a]
    containers:
      - name: web
        image: nginx:1.27
        ports: ["8080:80"]
        clients: [prod-b]
      - name: worker
        image: example/worker:2
        instances: [high, low]
        env:
          QUEUE: jobs
        memory: 512m
  - name: support
    clients: [prod-a, prod-b]
    containers:
      - name: cachesvc
        image: redis:7
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if len(f.Clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(f.Clients))
	}
	a := f.Clients["prod-a"]
	if a.Host != "deploy@10.0.0.4" {
		t.Errorf("prod-a host: %q", a.Host)
	}
	if a.TunnelRemotePort != 2375 {
		t.Errorf("prod-a tunnel_remote_port: %d", a.TunnelRemotePort)
	}
	b := f.Clients["prod-b"]
	if b.Registry.User != "pusher" || b.Registry.URL != "registry.example.com" {
		t.Errorf("prod-b registry: %+v", b.Registry)
	}

	if len(f.Maps) != 2 || f.Maps[0].Name != "webapps" || f.Maps[1].Name != "support" {
		t.Fatalf("maps not in declaration order: %+v", f.Maps)
	}

	m, ok := f.Map("webapps")
	if !ok {
		t.Fatal("map webapps not found")
	}
	web, ok := m.Container("web")
	if !ok {
		t.Fatal("container web not found")
	}
	if web.Image != "nginx:1.27" || len(web.Ports) != 1 {
		t.Errorf("container web: %+v", web)
	}
	worker, _ := m.Container("worker")
	if len(worker.Instances) != 2 || worker.Memory != "512m" {
		t.Errorf("container worker: %+v", worker)
	}
}

func TestParseFileRejectsUnnamed(t *testing.T) {
	if _, err := ParseFile([]byte("maps:\n  - clients: [a]\n")); err == nil {
		t.Error("expected error for unnamed map")
	}
	if _, err := ParseFile([]byte("maps:\n  - name: m\n    containers:\n      - image: x\n")); err == nil {
		t.Error("expected error for unnamed container")
	}
}

func TestClientNamesOrderAndDeduplication(t *testing.T) {
	m := ContainerMap{
		Name:    "m",
		Clients: []string{"prod-a", "prod-b"},
		Containers: []ContainerConfig{
			{Name: "one", Clients: []string{"prod-b", "prod-c"}},
			{Name: "two", Clients: []string{"prod-a"}},
		},
	}
	got := m.ClientNames()
	want := []string{"prod-a", "prod-b", "prod-c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
