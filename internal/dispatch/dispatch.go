// Package dispatch sends a device command to the hub's /command endpoint and
// hands the reply message to whatever is presenting results to the user.
//
// A Dispatcher has no state of its own. Each Dispatch reads the two fields at
// call time, issues exactly one POST and notifies at most once. The HTTP status
// of the reply is not inspected and nothing is retried.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Field names read from a FieldSource.
const (
	FieldDevice  = "device"
	FieldCommand = "command"
)

// CommandPath is resolved against the origin of the configured base URL.
const CommandPath = "/command"

// Placeholder is notified when the reply carries no message.
const Placeholder = "undefined"

var (
	// ErrFieldMissing means a FieldSource has no field with the requested name.
	ErrFieldMissing = errors.New("field missing")
	// ErrTransport wraps failures to send the request or read the reply.
	ErrTransport = errors.New("transport failure")
	// ErrDecode wraps reply bodies that are not valid JSON.
	ErrDecode = errors.New("decode response")
	// ErrNullReply means the reply body is the JSON literal null, which has
	// no fields to read a message from.
	ErrNullReply = errors.New("null reply")
)

// FieldSource yields the current text of a named input.
type FieldSource interface {
	Value(name string) (string, error)
}

// Fields is a FieldSource backed by a map.
type Fields map[string]string

// Value returns the named field or ErrFieldMissing.
func (f Fields) Value(name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFieldMissing, name)
	}
	return v, nil
}

// Notifier presents a reply message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) { f(message) }

// Result is a decoded reply from /command.
type Result struct {
	StatusCode int
	// Message is the text to show. It is Placeholder when HasMessage is false.
	Message    string
	HasMessage bool
}

// Client posts command payloads to a hub.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a Client for the hub at baseURL. Only the scheme and host
// of baseURL matter since CommandPath is absolute. A nil hc means a client with
// no timeout.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		endpoint: base.ResolveReference(&url.URL{Path: CommandPath}).String(),
		http:     hc,
	}, nil
}

// Endpoint returns the absolute URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Send posts {"device","command"} and decodes the reply. Any HTTP status is
// accepted as long as the body is JSON other than null.
func (c *Client) Send(ctx context.Context, device, command string) (Result, error) {
	body, err := json.Marshal(map[string]string{
		FieldDevice:  device,
		FieldCommand: command,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if decoded == nil {
		return Result{StatusCode: resp.StatusCode}, ErrNullReply
	}

	msg, ok := messageText(decoded)
	return Result{StatusCode: resp.StatusCode, Message: msg, HasMessage: ok}, nil
}

// messageText extracts the message field from a decoded reply. Non-string
// values are rendered as compact JSON, so null shows as "null".
// Objects and arrays show their JSON rather than a browser's [object Object].
func messageText(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Placeholder, false
	}
	raw, ok := obj["message"]
	if !ok {
		return Placeholder, false
	}
	if s, ok := raw.(string); ok {
		return s, true
	}
	text, err := json.Marshal(raw)
	if err != nil {
		return Placeholder, false
	}
	return string(text), true
}

// Dispatcher ties a FieldSource and a Notifier to a Client.
type Dispatcher struct {
	client   *Client
	fields   FieldSource
	notifier Notifier
}

// New creates a Dispatcher.
func New(client *Client, fields FieldSource, notifier Notifier) *Dispatcher {
	return &Dispatcher{client: client, fields: fields, notifier: notifier}
}

// Dispatch reads the device and command fields, sends them and notifies the
// reply message. Errors are returned without notifying.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	device, err := d.fields.Value(FieldDevice)
	if err != nil {
		return err
	}
	command, err := d.fields.Value(FieldCommand)
	if err != nil {
		return err
	}

	res, err := d.client.Send(ctx, device, command)
	if err != nil {
		return err
	}
	d.notifier.Notify(res.Message)
	return nil
}
