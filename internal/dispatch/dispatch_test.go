package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capture struct {
	mu       sync.Mutex
	messages []string
}

func (c *capture) Notify(message string) {
	c.mu.Lock()
	c.messages = append(c.messages, message)
	c.mu.Unlock()
}

func (c *capture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

type received struct {
	method      string
	path        string
	contentType string
	body        map[string]any
}

// newHub starts a server that records each request and replies with status and body.
func newHub(t *testing.T, status int, body string) (*httptest.Server, *[]received) {
	t.Helper()
	var mu sync.Mutex
	var reqs []received
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		json.Unmarshal(raw, &decoded)
		mu.Lock()
		reqs = append(reqs, received{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        decoded,
		})
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, &reqs
}

func newDispatcher(t *testing.T, baseURL string, fields FieldSource, n Notifier) *Dispatcher {
	t.Helper()
	c, err := NewClient(baseURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(c, fields, n)
}

func TestDispatchSendsPayload(t *testing.T) {
	ts, reqs := newHub(t, http.StatusOK, `{"status":"success","message":"OK"}`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "Rectangle", FieldCommand: "Blue 80"}, n)

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(*reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*reqs))
	}
	got := (*reqs)[0]
	if got.method != http.MethodPost {
		t.Errorf("method = %s, want POST", got.method)
	}
	if got.path != "/command" {
		t.Errorf("path = %s, want /command", got.path)
	}
	if got.contentType != "application/json" {
		t.Errorf("content type = %q, want application/json", got.contentType)
	}
	if len(got.body) != 2 || got.body["device"] != "Rectangle" || got.body["command"] != "Blue 80" {
		t.Errorf("body = %v", got.body)
	}

	msgs := n.all()
	if len(msgs) != 1 || msgs[0] != "OK" {
		t.Fatalf("notified %v, want [OK]", msgs)
	}
}

func TestDispatchForwardsEmptyStrings(t *testing.T) {
	ts, reqs := newHub(t, http.StatusBadRequest, `{"status":"error","message":"Missing 'device' or 'command'."}`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "", FieldCommand: ""}, n)

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	body := (*reqs)[0].body
	if v, ok := body["device"]; !ok || v != "" {
		t.Errorf("device = %v, want empty string", v)
	}
	if v, ok := body["command"]; !ok || v != "" {
		t.Errorf("command = %v, want empty string", v)
	}
	// A 400 with a readable body is shown like any other reply.
	if msgs := n.all(); len(msgs) != 1 || msgs[0] != "Missing 'device' or 'command'." {
		t.Errorf("notified %v", msgs)
	}
}

func TestDispatchIgnoresStatusCode(t *testing.T) {
	ts, _ := newHub(t, http.StatusInternalServerError, `{"message":"boom"}`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a", FieldCommand: "b"}, n)

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if msgs := n.all(); len(msgs) != 1 || msgs[0] != "boom" {
		t.Errorf("notified %v, want [boom]", msgs)
	}
}

func TestDispatchMissingMessage(t *testing.T) {
	for _, body := range []string{`{}`, `[1,2]`, `"text"`} {
		ts, _ := newHub(t, http.StatusOK, body)
		n := &capture{}
		d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a", FieldCommand: "b"}, n)

		if err := d.Dispatch(context.Background()); err != nil {
			t.Fatalf("%s: dispatch: %v", body, err)
		}
		if msgs := n.all(); len(msgs) != 1 || msgs[0] != Placeholder {
			t.Errorf("%s: notified %v, want [%s]", body, msgs, Placeholder)
		}
	}
}

func TestDispatchNullReply(t *testing.T) {
	ts, _ := newHub(t, http.StatusOK, `null`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a", FieldCommand: "b"}, n)

	if err := d.Dispatch(context.Background()); !errors.Is(err, ErrNullReply) {
		t.Fatalf("expected ErrNullReply, got %v", err)
	}
	if msgs := n.all(); len(msgs) != 0 {
		t.Errorf("expected no notification, got %v", msgs)
	}
}

func TestDispatchNonStringMessage(t *testing.T) {
	ts, _ := newHub(t, http.StatusOK, `{"message":null}`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a", FieldCommand: "b"}, n)
	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if msgs := n.all(); msgs[0] != "null" {
		t.Errorf("notified %q, want null", msgs[0])
	}

	ts2, _ := newHub(t, http.StatusOK, `{"message":42}`)
	c, _ := NewClient(ts2.URL, nil)
	res, err := c.Send(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "42" || !res.HasMessage {
		t.Errorf("result = %+v", res)
	}

	ts3, _ := newHub(t, http.StatusOK, `{"message":{"code":1,"tags":["a","b"]}}`)
	c3, _ := NewClient(ts3.URL, nil)
	res, err = c3.Send(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != `{"code":1,"tags":["a","b"]}` {
		t.Errorf("object message = %q", res.Message)
	}
}

func TestDispatchMalformedBody(t *testing.T) {
	ts, _ := newHub(t, http.StatusOK, `<html>not json</html>`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a", FieldCommand: "b"}, n)

	err := d.Dispatch(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if msgs := n.all(); len(msgs) != 0 {
		t.Errorf("expected no notification, got %v", msgs)
	}
}

func TestDispatchEmptyBody(t *testing.T) {
	ts, _ := newHub(t, http.StatusNoContent, ``)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a", FieldCommand: "b"}, n)

	if err := d.Dispatch(context.Background()); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if len(n.all()) != 0 {
		t.Error("expected no notification")
	}
}

func TestDispatchNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	n := &capture{}
	d := newDispatcher(t, url, Fields{FieldDevice: "a", FieldCommand: "b"}, n)

	err := d.Dispatch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if len(n.all()) != 0 {
		t.Error("expected no notification")
	}
}

func TestDispatchMissingField(t *testing.T) {
	ts, reqs := newHub(t, http.StatusOK, `{"message":"OK"}`)
	n := &capture{}
	d := newDispatcher(t, ts.URL, Fields{FieldDevice: "a"}, n)

	err := d.Dispatch(context.Background())
	if !errors.Is(err, ErrFieldMissing) {
		t.Fatalf("expected ErrFieldMissing, got %v", err)
	}
	if len(*reqs) != 0 {
		t.Error("expected no request when a field is missing")
	}
	if len(n.all()) != 0 {
		t.Error("expected no notification")
	}
}

// liveFields is a FieldSource whose values change between dispatches.
type liveFields struct {
	mu     sync.Mutex
	values map[string]string
}

func (f *liveFields) set(device, command string) {
	f.mu.Lock()
	f.values = map[string]string{FieldDevice: device, FieldCommand: command}
	f.mu.Unlock()
}

func (f *liveFields) Value(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Fields(f.values).Value(name)
}

func TestDispatchOverlappingInvocations(t *testing.T) {
	arrived := make(chan string, 2)
	release := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		arrived <- req["device"] + "|" + req["command"]
		<-release[req["device"]]
		json.NewEncoder(w).Encode(map[string]string{"message": req["device"] + " done"})
	}))
	defer ts.Close()

	fields := &liveFields{}
	n := &capture{}
	d := newDispatcher(t, ts.URL, fields, n)

	errs := make(chan error, 2)
	fields.set("first", "Red 10")
	go func() { errs <- d.Dispatch(context.Background()) }()
	if got := waitFor(t, arrived); got != "first|Red 10" {
		t.Fatalf("first request carried %q", got)
	}

	fields.set("second", "Blue 80")
	go func() { errs <- d.Dispatch(context.Background()) }()
	if got := waitFor(t, arrived); got != "second|Blue 80" {
		t.Fatalf("second request carried %q", got)
	}

	// Complete out of trigger order.
	close(release["second"])
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	close(release["first"])
	if err := <-errs; err != nil {
		t.Fatal(err)
	}

	msgs := n.all()
	if len(msgs) != 2 || msgs[0] != "second done" || msgs[1] != "first done" {
		t.Fatalf("notified %v, want completion order", msgs)
	}
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for request")
		return ""
	}
}

func TestNewClientEndpoint(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080/phone/index.html", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint() != "http://127.0.0.1:8080/command" {
		t.Errorf("endpoint = %s", c.Endpoint())
	}

	if _, err := NewClient("127.0.0.1:8080", nil); err == nil {
		t.Error("expected error for base url without scheme")
	}
}
