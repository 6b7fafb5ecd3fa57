// Package health runs periodic liveness checks over the relay's components
// and serves the aggregate over HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates that the component is healthy
	StatusUp Status = "up"
	// StatusDown indicates that the component is unhealthy
	StatusDown Status = "down"
	// StatusDegraded indicates that the component is partially healthy
	StatusDegraded Status = "degraded"
)

// CheckFunc probes one component.
type CheckFunc func(ctx context.Context) (Status, error)

// Component is one probed component's latest result.
type Component struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Checker periodically probes registered components.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	checks     map[string]CheckFunc
	updatedAt  time.Time
	period     time.Duration
	stopChan   chan struct{}
}

// NewChecker creates a checker probing every 30 seconds.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		checks:     make(map[string]CheckFunc),
		period:     30 * time.Second,
		stopChan:   make(chan struct{}),
	}
}

// Register adds a component. Until its first probe it reports down.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = &Component{Name: name, Status: StatusDown}
	c.checks[name] = check
}

// Start probes immediately, then on every period tick until Stop.
func (c *Checker) Start() {
	ticker := time.NewTicker(c.period)
	go func() {
		c.checkAll()
		for {
			select {
			case <-ticker.C:
				c.checkAll()
			case <-c.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the probe loop.
func (c *Checker) Stop() {
	close(c.stopChan)
}

func (c *Checker) checkAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.updatedAt = time.Now()

	for name, check := range c.checks {
		status, err := check(ctx)
		component := c.components[name]
		component.Status = status
		if err != nil {
			component.Error = err.Error()
		} else {
			component.Error = ""
		}
	}
}

// Overall folds component statuses into one: any down component degrades the
// service; nothing registered means down.
func (c *Checker) Overall() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.components) == 0 {
		return StatusDown
	}
	for _, component := range c.components {
		if component.Status == StatusDown {
			return StatusDegraded
		}
	}
	return StatusUp
}

// Components returns the latest result for every component.
func (c *Checker) Components() []Component {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Component, 0, len(c.components))
	for _, component := range c.components {
		out = append(out, *component)
	}
	return out
}

// HTTPHandler serves the aggregate status, 503 when degraded or down.
func (c *Checker) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		overall := c.Overall()
		w.Header().Set("Content-Type", "application/json")
		if overall != StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     overall,
			"components": c.Components(),
			"updated_at": c.updated().UnixNano() / int64(time.Millisecond),
		})
	})
}

func (c *Checker) updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
