package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// DaemonAPI is the interface for reading from the arhubd control API.
// Implemented by APIClient; tests can provide a mock.
type DaemonAPI interface {
	GetStatus(ctx context.Context) (*protocol.StatusResponse, error)
	GetDevices(ctx context.Context) (*protocol.DevicesResponse, error)
	GetTasks(ctx context.Context) (*protocol.TasksResponse, error)
	ResetTasks(ctx context.Context) error
}

// APIClient talks to arhubd over its Unix socket HTTP API.
type APIClient struct {
	client *http.Client
}

// NewAPIClient creates an APIClient connected to the daemon's Unix socket.
func NewAPIClient(socketPath string) *APIClient {
	return &APIClient{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *APIClient) GetStatus(ctx context.Context) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	if err := c.getJSON(ctx, "/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetDevices(ctx context.Context) (*protocol.DevicesResponse, error) {
	var resp protocol.DevicesResponse
	if err := c.getJSON(ctx, "/api/v1/devices", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetTasks(ctx context.Context) (*protocol.TasksResponse, error) {
	var resp protocol.TasksResponse
	if err := c.getJSON(ctx, "/api/v1/tasks", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) ResetTasks(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://arhubd/api/v1/tasks/reset", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reset request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://arhubd"+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
