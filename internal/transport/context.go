package transport

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultPollInterval = 5 * time.Second

// ConnectionContext is the connection state shared by the supervisor, the
// poller, the writer and the admin client. Only the supervisor writes to it.
type ConnectionContext struct {
	mu           sync.RWMutex
	id           string
	baseURL      *url.URL
	receiveAll   bool
	pollInterval time.Duration
}

func NewConnectionContext() *ConnectionContext {
	return &ConnectionContext{pollInterval: DefaultPollInterval}
}

// Bind derives the base URL from address and useTLS unless one is already
// bound. It reports whether a new URL was bound.
func (c *ConnectionContext) Bind(address string, useTLS bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.baseURL != nil {
		return false, nil
	}

	base, err := deriveBaseURL(address, useTLS)
	if err != nil {
		return false, err
	}
	c.baseURL = base
	c.id = uuid.NewString()

	return true, nil
}

// Release forgets the bound base URL so the next Bind derives a new one.
func (c *ConnectionContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseURL = nil
	c.id = ""
}

func (c *ConnectionContext) SetPolling(receiveAll bool, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.receiveAll = receiveAll
	if interval > 0 {
		c.pollInterval = interval
	}
}

func (c *ConnectionContext) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == nil {
		return ""
	}

	return c.baseURL.String()
}

func (c *ConnectionContext) Bound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.baseURL != nil
}

// ID identifies the current bind lifetime in logs. Empty when unbound.
func (c *ConnectionContext) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.id
}

func (c *ConnectionContext) ReceiveAll() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.receiveAll
}

func (c *ConnectionContext) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pollInterval
}

func (c *ConnectionContext) endpoint(path string, query url.Values) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == nil {
		return "", ErrNotBound
	}

	u := *c.baseURL
	u.Path = path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

func deriveBaseURL(address string, useTLS bool) (*url.URL, error) {
	host := strings.TrimSpace(address)
	if host == "" {
		return nil, fmt.Errorf("device address is empty")
	}
	if strings.Contains(host, "://") || strings.ContainsAny(host, "/?#") {
		return nil, fmt.Errorf("device address must be a bare host or ip: %q", address)
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	return &url.URL{Scheme: scheme, Host: host}, nil
}
