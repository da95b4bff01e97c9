package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// apiClient returns an http.Client that connects over the Unix socket.
func apiClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

// apiGet performs a GET and decodes the JSON response.
func apiGet(path string, dest any) error {
	resp, err := apiClient().Get("http://arhubd" + path)
	if err != nil {
		return fmt.Errorf("cannot connect to arhubd at %s: %w", socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arhubd returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// apiPost performs a POST and decodes the JSON response.
func apiPost(path string, dest any) error {
	resp, err := apiClient().Post("http://arhubd"+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("cannot connect to arhubd at %s: %w", socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arhubd returned HTTP %d", resp.StatusCode)
	}
	if dest != nil {
		return json.NewDecoder(resp.Body).Decode(dest)
	}
	return nil
}

// phonePost posts body to the phone server and returns its message. An
// error status in the reply becomes an error carrying the message.
func phonePost(path string, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	url := strings.TrimSuffix(serverURL, "/") + path
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("cannot connect to phone server at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	var out protocol.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if out.Status != protocol.StatusSuccess {
		return "", errors.New(out.Message)
	}
	return out.Message, nil
}
