package pebble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"sigs.k8s.io/yaml"
)

// DefaultSocketPath is where Pebble exposes its API socket inside the
// workload container when not configured otherwise.
const DefaultSocketPath = "/charm/containers/jellyfin/pebble.socket"

// ErrServiceNotFound is returned by Service when the named service is not
// declared in the supervisor's plan. This is a distinct error class from
// an unreachable supervisor.
var ErrServiceNotFound = errors.New("service not found")

// Client is the supervisor contract the convergence pass runs against.
// The production implementation talks to Pebble's HTTP API; tests use the
// in-memory fake from the pebbletest package.
type Client interface {
	// CanConnect reports whether the supervisor API is reachable.
	CanConnect(ctx context.Context) bool

	// Plan returns the supervisor's currently applied plan.
	Plan(ctx context.Context) (*Plan, error)

	// AddLayer submits a layer overlay under the given label. With
	// combine set, an existing layer with the same label is merged with
	// the overlay instead of appended.
	AddLayer(ctx context.Context, label string, layer *Layer, combine bool) error

	// Services returns the runtime state of every declared service.
	Services(ctx context.Context) (map[string]ServiceInfo, error)

	// Service returns the runtime state of one service, or
	// ErrServiceNotFound when it was never declared.
	Service(ctx context.Context, name string) (ServiceInfo, error)

	// Restart stops and starts the named service.
	Restart(ctx context.Context, name string) error
}

// SocketClient talks to a Pebble daemon over its unix socket.
type SocketClient struct {
	socket string
	http   *http.Client
}

var _ Client = &SocketClient{}

// NewClient returns a client for the Pebble socket at the given path.
// An empty path selects DefaultSocketPath.
func NewClient(socketPath string) *SocketClient {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &SocketClient{
		socket: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 15 * time.Second,
		},
	}
}

// response is the envelope Pebble wraps every API result in.
type response struct {
	Type       string          `json:"type"`
	StatusCode int             `json:"status-code"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result"`
}

func (c *SocketClient) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := url.URL{Scheme: "http", Host: "localhost", Path: path, RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, envelope.Status, resp.StatusCode)
	}
	return envelope.Result, nil
}

// CanConnect probes the system-info endpoint. Any transport error means
// the supervisor is not (yet) reachable; API-level errors still prove the
// socket answers.
func (c *SocketClient) CanConnect(ctx context.Context) bool {
	u := url.URL{Scheme: "http", Host: "localhost", Path: "/v1/system-info"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Plan fetches the applied plan in YAML form and decodes it.
func (c *SocketClient) Plan(ctx context.Context) (*Plan, error) {
	query := url.Values{"format": []string{"yaml"}}
	result, err := c.do(ctx, http.MethodGet, "/v1/plan", query, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching plan: %w", err)
	}

	var planYAML string
	if err := json.Unmarshal(result, &planYAML); err != nil {
		return nil, fmt.Errorf("decoding plan payload: %w", err)
	}
	plan := &Plan{}
	if err := yaml.Unmarshal([]byte(planYAML), plan); err != nil {
		return nil, fmt.Errorf("decoding plan yaml: %w", err)
	}
	if plan.Services == nil {
		plan.Services = map[string]*Service{}
	}
	return plan, nil
}

// AddLayer submits a layer overlay to the supervisor.
func (c *SocketClient) AddLayer(ctx context.Context, label string, layer *Layer, combine bool) error {
	layerYAML, err := yaml.Marshal(layer)
	if err != nil {
		return fmt.Errorf("encoding layer %q: %w", label, err)
	}
	payload := map[string]any{
		"action":  "add",
		"combine": combine,
		"label":   label,
		"format":  "yaml",
		"layer":   string(layerYAML),
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/layers", nil, payload); err != nil {
		return fmt.Errorf("adding layer %q: %w", label, err)
	}
	return nil
}

// Services lists the runtime state of all declared services.
func (c *SocketClient) Services(ctx context.Context) (map[string]ServiceInfo, error) {
	result, err := c.do(ctx, http.MethodGet, "/v1/services", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	var infos []ServiceInfo
	if err := json.Unmarshal(result, &infos); err != nil {
		return nil, fmt.Errorf("decoding services: %w", err)
	}
	services := make(map[string]ServiceInfo, len(infos))
	for _, info := range infos {
		services[info.Name] = info
	}
	return services, nil
}

// Service returns the runtime state of one service.
func (c *SocketClient) Service(ctx context.Context, name string) (ServiceInfo, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return ServiceInfo{}, err
	}
	info, ok := services[name]
	if !ok {
		return ServiceInfo{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return info, nil
}

// Restart issues a restart for the named service. Pebble handles the
// restart asynchronously; acceptance of the change is treated as success
// and any later failure shows up as the service not running on the next
// pass.
func (c *SocketClient) Restart(ctx context.Context, name string) error {
	payload := map[string]any{
		"action":   "restart",
		"services": []string{name},
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/services", nil, payload); err != nil {
		return fmt.Errorf("restarting service %q: %w", name, err)
	}
	return nil
}
