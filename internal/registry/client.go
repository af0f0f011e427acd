package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"engage/internal/apperr"
	"engage/internal/metrics"
)

// ErrNoHealthyInstance is returned by Resolve when every registered
// instance of a service is down or none exist.
var ErrNoHealthyInstance = errors.New("no healthy instance")

// Instance is one registered service endpoint as reported by the registry.
type Instance struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Healthy bool   `json:"healthy"`
}

// Client talks to the naming registry over its HTTP API. It keeps a
// service instance discoverable (register + heartbeat) and resolves the
// addresses of peer services.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a registry client. Registry calls are never allowed to
// block a request path, so the HTTP client carries a short timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

// Register announces one service instance to the registry.
func (c *Client) Register(ctx context.Context, serviceName, ip string, port int) error {
	return c.do(ctx, http.MethodPost, "/v1/ns/instance", serviceName, ip, port)
}

// Heartbeat refreshes the liveness of a registered instance.
func (c *Client) Heartbeat(ctx context.Context, serviceName, ip string, port int) error {
	return c.do(ctx, http.MethodPut, "/v1/ns/instance/beat", serviceName, ip, port)
}

// RegisterWithRetry attempts registration up to attempts times, sleeping
// delay between tries. On exhaustion the service keeps running but is
// not discoverable; the caller decides whether that is fatal.
func (c *Client) RegisterWithRetry(ctx context.Context, serviceName, ip string, port, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 10
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.Register(ctx, serviceName, ip, port)
		if err == nil {
			log.Printf("registry: %s registered as %s:%d", serviceName, ip, port)
			return nil
		}
		lastErr = err
		log.Printf("registry: register %s attempt %d/%d failed: %v", serviceName, attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("register %s abandoned after %d attempts: %w", serviceName, attempts, lastErr)
}

// StartHeartbeat emits heartbeats on a fixed interval until ctx is
// cancelled. Individual failures are logged and counted; the next tick
// retries naturally.
func (c *Client) StartHeartbeat(ctx context.Context, serviceName, ip string, port int, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Heartbeat(ctx, serviceName, ip, port); err != nil {
					metrics.HeartbeatFailures.Inc()
					log.Printf("registry: heartbeat %s failed: %v", serviceName, err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ListInstances queries the registry for every instance of a service.
func (c *Client) ListInstances(ctx context.Context, serviceName string) ([]Instance, error) {
	u := c.BaseURL + "/v1/ns/instance/list?serviceName=" + url.QueryEscape(serviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, "registry unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Newf(apperr.Unavailable, "registry list %s: status %d: %s", serviceName, resp.StatusCode, body)
	}
	var out struct {
		Hosts []Instance `json:"hosts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, "registry response malformed", err)
	}
	return out.Hosts, nil
}

// Resolve returns the address of the first healthy instance of a
// service. A registry with zero healthy instances yields
// ErrNoHealthyInstance so callers can degrade instead of failing hard.
func (c *Client) Resolve(ctx context.Context, serviceName string) (string, int, error) {
	instances, err := c.ListInstances(ctx, serviceName)
	if err != nil {
		return "", 0, err
	}
	for _, inst := range instances {
		if inst.Healthy {
			return inst.IP, inst.Port, nil
		}
	}
	return "", 0, apperr.Wrap(apperr.Unavailable, "no healthy instance for "+serviceName, ErrNoHealthyInstance)
}

// ResolveURL resolves a service and renders its base URL.
func (c *Client) ResolveURL(ctx context.Context, serviceName string) (string, error) {
	ip, port, err := c.Resolve(ctx, serviceName)
	if err != nil {
		return "", err
	}
	return "http://" + ip + ":" + strconv.Itoa(port), nil
}

func (c *Client) do(ctx context.Context, method, path, serviceName, ip string, port int) error {
	q := url.Values{}
	q.Set("serviceName", serviceName)
	q.Set("ip", ip)
	q.Set("port", strconv.Itoa(port))
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Unavailable, "registry unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Newf(apperr.Unavailable, "registry %s %s: status %d: %s", method, path, resp.StatusCode, body)
	}
	return nil
}
