// Package docker launches the local model server in a container.
package docker

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// ModelsMount is where the server image keeps downloaded model weights.
const ModelsMount = "/root/.ollama"

type ServerOpts struct {
	Image string
	Port  int
	// ModelsDir is a host directory cached across runs. Empty keeps weights
	// inside the container.
	ModelsDir string
}

// Server is a running model server container.
type Server struct {
	ID  string
	URL string
	cli *client.Client
}

// Ping reports whether the server answers.
type Ping func(ctx context.Context) error

func containerConfig(opts *ServerOpts) (*container.Config, *container.HostConfig, error) {
	cfg := &container.Config{
		Image:  opts.Image,
		Env:    []string{"OLLAMA_HOST=0.0.0.0:" + strconv.Itoa(opts.Port)},
		Labels: map[string]string{"verifierbench": "true"},
	}
	initTrue := true
	hostCfg := &container.HostConfig{
		Init: &initTrue,
		// Host networking keeps the server at localhost:<port> for the gateway.
		NetworkMode: container.NetworkMode("host"),
	}
	if opts.ModelsDir != "" {
		src, err := filepath.Abs(opts.ModelsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving models dir: %w", err)
		}
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: src,
			Target: ModelsMount,
		}}
	}
	return cfg, hostCfg, nil
}

// StartServer creates and starts the server container. The image must
// already be present locally.
func StartServer(ctx context.Context, opts *ServerOpts) (*Server, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	containerCfg, hostCfg, err := containerConfig(opts)
	if err != nil {
		cli.Close()
		return nil, err
	}
	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("creating container: %w", err)
	}
	s := &Server{
		ID:  createResp.ID,
		URL: "http://localhost:" + strconv.Itoa(opts.Port),
		cli: cli,
	}
	if _, err := cli.ContainerStart(ctx, s.ID, client.ContainerStartOptions{}); err != nil {
		s.Stop()
		return nil, fmt.Errorf("starting container: %w", err)
	}
	return s, nil
}

// WaitReady polls ping until it succeeds, the timeout passes or ctx ends.
func WaitReady(ctx context.Context, ping Ping, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		if last = ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("model server not ready after %s: %w", timeout, last)
		case <-ticker.C:
		}
	}
}

// Logs returns the last tail lines of the container output.
func (s *Server) Logs(ctx context.Context, tail int) string {
	logReader, _ := s.cli.ContainerLogs(ctx, s.ID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: strconv.Itoa(tail)})
	if logReader == nil {
		return ""
	}
	defer logReader.Close()
	data, _ := io.ReadAll(logReader)
	return string(data)
}

// Stop kills and removes the container.
func (s *Server) Stop() {
	s.cli.ContainerKill(context.Background(), s.ID, client.ContainerKillOptions{Signal: "SIGKILL"})
	s.cli.ContainerRemove(context.Background(), s.ID, client.ContainerRemoveOptions{Force: true})
	s.cli.Close()
}
