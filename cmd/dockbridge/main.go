package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/docker/pkg/archive"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/gluk-w/dockbridge/internal/client"
	"github.com/gluk-w/dockbridge/internal/config"
	"github.com/gluk-w/dockbridge/internal/logging"
	"github.com/gluk-w/dockbridge/internal/orchestrator"
	"github.com/gluk-w/dockbridge/internal/remote"
)

// Version is stamped at build time.
var Version = "dev"

const usage = `Usage: dockbridge [flags] <command> [args]

Container map commands:
  create|start|stop|remove|startup|shutdown|update MAP CONFIG [--instances a,b]

Per-client commands (fan out over every named client):
  images CLIENT...               list image tags
  containers CLIENT...           list container names
  pull CLIENT REF                pull an image
  push CLIENT REF                push an image
  build CLIENT TAG DIR           build an image from a directory
  login CLIENT...                log in to the configured registry
  cleanup CLIENT... [--images]   remove stopped containers (and old images)

  version                        print the version
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "dockbridge.yaml", "Path to the clients/maps configuration file")
		instances  = pflag.StringSlice("instances", nil, "Instance names overriding the configured list")
		withImages = pflag.Bool("images", false, "Also remove old images during cleanup")
	)
	pflag.CommandLine.SortFlags = false
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		return fmt.Errorf("no command given")
	}
	if args[0] == "version" {
		fmt.Println("dockbridge", Version)
		return nil
	}

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	logging.Init(settings.LogPath)
	defer logging.Close()

	file, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := remote.NewManager(remote.Options{
		User:    settings.SSHUser,
		KeyPath: settings.SSHKeyPath,
		Timeout: settings.Timeout,
	})
	defer func() {
		if err := mgr.CloseAll(); err != nil {
			log.Printf("[ssh] close: %v", err)
		}
	}()

	pools := client.NewPools()
	cache := client.NewCache()
	defer func() {
		if err := cache.CloseAll(); err != nil {
			log.Printf("[docker] close: %v", err)
		}
	}()

	app := &app{
		settings: settings,
		file:     file,
		mgr:      mgr,
		pools:    pools,
		cache:    cache,
	}

	switch cmd := args[0]; cmd {
	case "create", "start", "stop", "remove", "startup", "shutdown", "update":
		if len(args) != 3 {
			return fmt.Errorf("usage: dockbridge %s MAP CONFIG", cmd)
		}
		return app.performAction(ctx, cmd, args[1], args[2], *instances)
	case "images", "containers", "login":
		if len(args) < 2 {
			return fmt.Errorf("usage: dockbridge %s CLIENT...", cmd)
		}
		return app.eachClient(ctx, args[1:], func(ctx context.Context, name string, conn *client.DockerClient) error {
			switch cmd {
			case "images":
				return printList(conn.ListImages(ctx))
			case "containers":
				return printList(conn.ListContainers(ctx))
			default:
				return conn.Login(ctx)
			}
		})
	case "cleanup":
		if len(args) < 2 {
			return fmt.Errorf("usage: dockbridge cleanup CLIENT... [--images]")
		}
		return app.eachClient(ctx, args[1:], func(ctx context.Context, name string, conn *client.DockerClient) error {
			if err := conn.CleanupContainers(ctx, nil); err != nil {
				return err
			}
			if *withImages {
				return conn.CleanupImages(ctx, true)
			}
			return nil
		})
	case "pull", "push":
		if len(args) != 3 {
			return fmt.Errorf("usage: dockbridge %s CLIENT REF", cmd)
		}
		return app.eachClient(ctx, args[1:2], func(ctx context.Context, name string, conn *client.DockerClient) error {
			if cmd == "pull" {
				return conn.PullImage(ctx, args[2])
			}
			return conn.PushImage(ctx, args[2])
		})
	case "build":
		if len(args) != 4 {
			return fmt.Errorf("usage: dockbridge build CLIENT TAG DIR")
		}
		return app.eachClient(ctx, args[1:2], func(ctx context.Context, name string, conn *client.DockerClient) error {
			buildCtx, err := archive.TarWithOptions(args[3], &archive.TarOptions{})
			if err != nil {
				return fmt.Errorf("tar %s: %w", args[3], err)
			}
			defer buildCtx.Close()
			return conn.Build(ctx, args[2], buildCtx)
		})
	default:
		pflag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type app struct {
	settings config.Settings
	file     *config.File
	mgr      *remote.Manager
	pools    *client.Pools
	cache    *client.Cache
}

// connection resolves a named client configuration and returns its cached
// engine connection, dialing SSH and opening tunnels on first use.
func (a *app) connection(name string) (*client.DockerClient, error) {
	cfg, ok := a.file.Clients[name]
	if !ok {
		return nil, fmt.Errorf("client %q not configured", name)
	}
	resolved := cfg.Resolve(a.settings)
	if resolved.Host == "" {
		return nil, fmt.Errorf("client %q is configured, but has no host binding", name)
	}
	return a.cache.Get(a.mgr.Context(resolved.Host), resolved, a.pools)
}

// eachClient runs fn against the named clients concurrently and returns the
// first error.
func (a *app) eachClient(ctx context.Context, names []string, fn func(ctx context.Context, name string, conn *client.DockerClient) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			conn, err := a.connection(name)
			if err != nil {
				return err
			}
			if err := fn(ctx, name, conn); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// performAction bootstraps the orchestration for every configured map and
// dispatches one container operation.
func (a *app) performAction(ctx context.Context, action, mapName, configName string, instances []string) error {
	configs := make(map[string]config.ClientConfiguration, len(a.file.Clients))
	for name, cfg := range a.file.Clients {
		configs[name] = cfg.Resolve(a.settings)
	}

	connect := func(host string, cfg config.ClientConfiguration) (orchestrator.ContainerClient, error) {
		return a.cache.Get(a.mgr.Context(host), cfg, a.pools)
	}

	o, err := orchestrator.FromConfig(a.file.Maps, configs, connect)
	if err != nil {
		return err
	}
	return o.Perform(ctx, action, mapName, configName, instances...)
}

func printList(items []string, err error) error {
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Println(item)
	}
	return nil
}
