package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/jsonmessage"
)

// Ping checks that the engine answers on the connection.
func (c *DockerClient) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", c.url, err)
	}
	return nil
}

// Build builds an image from the tar stream buildCtx and tags it.
func (c *DockerClient) Build(ctx context.Context, tag string, buildCtx io.Reader) error {
	c.logf("Building image '%s'.", tag)
	resp, err := c.api.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:   []string{tag},
		Remove: true,
	})
	if err != nil {
		return fmt.Errorf("build %s: %w", tag, err)
	}
	defer resp.Body.Close()
	return c.followStream(resp.Body)
}

// CreateContainer creates a container from opts and returns its id.
func (c *DockerClient) CreateContainer(ctx context.Context, opts CreateOptions) (string, error) {
	nameStr := ""
	if opts.Name != "" {
		nameStr = fmt.Sprintf(" '%s'", opts.Name)
	}
	c.logf("Creating container%s from image '%s'.", nameStr, opts.Image)

	cfg, hostCfg, err := containerConfigs(opts)
	if err != nil {
		return "", err
	}
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("create container from %s: %w", opts.Image, err)
	}
	return resp.ID, nil
}

// StartContainer starts an existing container.
func (c *DockerClient) StartContainer(ctx context.Context, name string) error {
	c.logf("Starting container '%s'.", name)
	if err := c.api.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

// StopContainer stops a container; a zero timeout uses the engine default.
func (c *DockerClient) StopContainer(ctx context.Context, name string, timeout int) error {
	c.logf("Stopping container '%s'.", name)
	opts := container.StopOptions{}
	if timeout > 0 {
		opts.Timeout = &timeout
	}
	if err := c.api.ContainerStop(ctx, name, opts); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// RestartContainer restarts a container.
func (c *DockerClient) RestartContainer(ctx context.Context, name string, timeout int) error {
	c.logf("Restarting container '%s'.", name)
	opts := container.StopOptions{}
	if timeout > 0 {
		opts.Timeout = &timeout
	}
	if err := c.api.ContainerRestart(ctx, name, opts); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	return nil
}

// Wait blocks until the container stops and returns its exit code.
func (c *DockerClient) Wait(ctx context.Context, name string) (int64, error) {
	c.logf("Waiting for container '%s'.", name)
	statusCh, errCh := c.api.ContainerWait(ctx, name, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("wait for %s: %w", name, err)
	case status := <-statusCh:
		if status.Error != nil {
			return status.StatusCode, fmt.Errorf("wait for %s: %s", name, status.Error.Message)
		}
		return status.StatusCode, nil
	}
}

// RemoveContainer removes a container, force-removing if requested.
func (c *DockerClient) RemoveContainer(ctx context.Context, name string, force bool) error {
	c.logf("Removing container '%s'.", name)
	opts := container.RemoveOptions{Force: force, RemoveVolumes: true}
	if err := c.api.ContainerRemove(ctx, name, opts); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// RemoveImage removes an image by tag or id.
func (c *DockerClient) RemoveImage(ctx context.Context, img string) error {
	c.logf("Removing image '%s'.", img)
	if _, err := c.api.ImageRemove(ctx, img, image.RemoveOptions{}); err != nil {
		return fmt.Errorf("remove image %s: %w", img, err)
	}
	return nil
}

// PullImage fetches an image from its registry, authenticating with the
// resolved registry credentials when they are set.
func (c *DockerClient) PullImage(ctx context.Context, ref string) error {
	c.logf("Pulling image '%s'.", ref)
	rd, err := c.api.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: c.registryAuth()})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rd.Close()
	return c.followStream(rd)
}

// PushImage pushes an image to its registry.
func (c *DockerClient) PushImage(ctx context.Context, ref string) error {
	c.logf("Pushing image '%s'.", ref)
	rd, err := c.api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: c.registryAuth()})
	if err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	defer rd.Close()
	return c.followStream(rd)
}

// ImportImage creates an image named ref:tag from the tarball stream src.
func (c *DockerClient) ImportImage(ctx context.Context, src io.Reader, ref, tag string) error {
	if tag == "" {
		tag = "latest"
	}
	c.logf("Fetching image '%s' from registry.", ref)
	rd, err := c.api.ImageImport(ctx, image.ImportSource{Source: src, SourceName: "-"}, ref,
		image.ImportOptions{Tag: tag})
	if err != nil {
		return fmt.Errorf("import %s: %w", ref, err)
	}
	defer rd.Close()
	return c.followStream(rd)
}

// Login authenticates against the configured registry. Credentials come
// from the client configuration, which the ambient settings already filled
// in where the per-client values were blank.
func (c *DockerClient) Login(ctx context.Context) error {
	auth := registry.AuthConfig{
		Username:      c.cfg.Registry.User,
		Password:      c.cfg.Registry.Password,
		Email:         c.cfg.Registry.Email,
		ServerAddress: c.cfg.Registry.URL,
	}
	if _, err := c.api.RegistryLogin(ctx, auth); err != nil {
		c.logf("Login at registry '%s' failed.", c.cfg.Registry.URL)
		return fmt.Errorf("login at %s: %w", c.cfg.Registry.URL, err)
	}
	c.logf("Login at registry '%s' succeeded.", c.cfg.Registry.URL)
	return nil
}

// ListImages returns the tags of all images on the engine, untagged ones
// excluded.
func (c *DockerClient) ListImages(ctx context.Context) ([]string, error) {
	c.logf("Fetching image list.")
	images, err := c.api.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var tags []string
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag != "<none>:<none>" {
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// ListContainers returns the names of all containers, running or not.
func (c *DockerClient) ListContainers(ctx context.Context) ([]string, error) {
	c.logf("Fetching container list.")
	containers, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	var names []string
	for _, ctr := range containers {
		for _, name := range ctr.Names {
			names = append(names, strings.TrimPrefix(name, "/"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// SaveImage writes an image tarball to the local file path.
func (c *DockerClient) SaveImage(ctx context.Context, img, localPath string) error {
	c.logf("Receiving tarball for image '%s' and storing as '%s'", img, localPath)
	rd, err := c.api.ImageSave(ctx, []string{img})
	if err != nil {
		return fmt.Errorf("save image %s: %w", img, err)
	}
	defer rd.Close()
	return writeFile(localPath, rd)
}

// CopyResource copies a path out of a container into a local tarball.
func (c *DockerClient) CopyResource(ctx context.Context, ctr, resource, localPath string) error {
	c.logf("Receiving tarball for resource '%s:%s' and storing as %s", ctr, resource, localPath)
	rd, _, err := c.api.CopyFromContainer(ctx, ctr, resource)
	if err != nil {
		return fmt.Errorf("copy %s:%s: %w", ctr, resource, err)
	}
	defer rd.Close()
	return writeFile(localPath, rd)
}

// CleanupContainers removes all stopped containers, keeping those whose
// name is in exclude.
func (c *DockerClient) CleanupContainers(ctx context.Context, exclude []string) error {
	c.logf("Generating list of stopped containers.")
	stopped, err := c.api.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("status", "exited"),
			filters.Arg("status", "dead"),
		),
	})
	if err != nil {
		return fmt.Errorf("list stopped containers: %w", err)
	}
	keep := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		keep[name] = true
	}
	for _, ctr := range stopped {
		if containerExcluded(ctr.Names, keep) {
			continue
		}
		if err := c.api.ContainerRemove(ctx, ctr.ID, container.RemoveOptions{RemoveVolumes: true}); err != nil {
			return fmt.Errorf("remove %s: %w", ctr.ID, err)
		}
	}
	return nil
}

// CleanupImages removes dangling images. With removeOld, images whose tags
// are all non-latest are removed as well.
func (c *DockerClient) CleanupImages(ctx context.Context, removeOld bool) error {
	c.logf("Checking images for dependent images and containers.")
	if _, err := c.api.ImagesPrune(ctx, filters.NewArgs(filters.Arg("dangling", "true"))); err != nil {
		return fmt.Errorf("prune images: %w", err)
	}
	if !removeOld {
		return nil
	}
	images, err := c.api.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	for _, img := range images {
		if len(img.RepoTags) == 0 || hasLatestTag(img.RepoTags) {
			continue
		}
		for _, tag := range img.RepoTags {
			if _, err := c.api.ImageRemove(ctx, tag, image.RemoveOptions{}); err != nil {
				return fmt.Errorf("remove image %s: %w", tag, err)
			}
		}
	}
	return nil
}

// RemoveAllContainers stops and removes every container on the engine.
func (c *DockerClient) RemoveAllContainers(ctx context.Context) error {
	c.logf("Fetching container list.")
	containers, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}
	for _, ctr := range containers {
		if ctr.State == "running" {
			if err := c.api.ContainerStop(ctx, ctr.ID, container.StopOptions{}); err != nil {
				return fmt.Errorf("stop %s: %w", ctr.ID, err)
			}
		}
		if err := c.api.ContainerRemove(ctx, ctr.ID, container.RemoveOptions{RemoveVolumes: true}); err != nil {
			return fmt.Errorf("remove %s: %w", ctr.ID, err)
		}
	}
	return nil
}

// registryAuth encodes the configured registry credentials for the
// X-Registry-Auth header, or returns "" when none are set.
func (c *DockerClient) registryAuth() string {
	if c.cfg.Registry.User == "" {
		return ""
	}
	enc, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      c.cfg.Registry.User,
		Password:      c.cfg.Registry.Password,
		Email:         c.cfg.Registry.Email,
		ServerAddress: c.cfg.Registry.URL,
	})
	if err != nil {
		return ""
	}
	return enc
}

// followStream drains an engine progress stream, surfacing any error
// message embedded in it.
func (c *DockerClient) followStream(rd io.Reader) error {
	dec := json.NewDecoder(rd)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("read engine stream: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("engine reported: %s", msg.Error.Message)
		}
		if msg.Status != "" {
			c.logf("%s", msg.Status)
		}
	}
}

func writeFile(path string, rd io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, rd); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func containerExcluded(names []string, keep map[string]bool) bool {
	for _, name := range names {
		if keep[strings.TrimPrefix(name, "/")] {
			return true
		}
	}
	return false
}

func hasLatestTag(tags []string) bool {
	for _, tag := range tags {
		if strings.HasSuffix(tag, ":latest") {
			return true
		}
	}
	return false
}
