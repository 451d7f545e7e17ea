// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package health implements Kubernetes-style liveness, readiness and startup
// probes for the passkey server. Readiness is driven by registered checks,
// typically a document-store round trip, so a server whose backend is gone
// stops receiving ceremony traffic without being restarted.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the reported health of the server or one of its dependencies.
type Status string

const (
	// StatusHealthy indicates the component is operating normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component is functioning with reduced capacity.
	StatusDegraded Status = "degraded"
)

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	// Name identifies the dependency, e.g. "storage".
	Name string `json:"name"`
	// Status is the health of the dependency.
	Status Status `json:"status"`
	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`
	// Latency is how long the check took to execute.
	Latency time.Duration `json:"latency"`
	// Error contains error details if the check failed.
	Error string `json:"error,omitempty"`
}

// CheckFunc probes one dependency. Checks run on every readiness request and
// must return quickly; slow probes should honor ctx.
type CheckFunc func(ctx context.Context) CheckResult

// Checker aggregates dependency checks behind the three probe endpoints.
//
// Liveness answers "should the process be restarted", readiness answers
// "should it receive ceremony traffic", and startup gates both until
// initialization completes. A broken storage backend fails readiness only;
// the process itself stays live.
type Checker struct {
	mu        sync.RWMutex
	started   bool
	startTime time.Time
	checks    map[string]CheckFunc
}

// NewChecker creates a checker with no registered checks. Until MarkStarted
// is called the startup probe reports unhealthy.
func NewChecker() *Checker {
	return &Checker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
	}
}

// RegisterCheck adds a readiness check under the given name, replacing any
// existing check with that name. Nil checks are ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// MarkStarted flips the startup probe to healthy. Called once the storage
// backend, token minter and HTTP listener are all up.
func (c *Checker) MarkStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
}

// IsStarted reports whether MarkStarted has been called.
func (c *Checker) IsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Live performs a liveness check.
//
// The server holds no in-process ceremony state, so as long as the process
// can answer at all it is live. Dependency failures are readiness concerns
// and must not trigger a restart.
func (c *Checker) Live(ctx context.Context) CheckResult {
	start := time.Now()
	return CheckResult{
		Name:    "liveness",
		Status:  StatusHealthy,
		Message: "Service is alive",
		Latency: time.Since(start),
	}
}

// Ready runs every registered check and returns the individual results.
// With no checks registered the server is considered ready, which keeps
// memory-backed test deployments working without a probe.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	if len(checks) == 0 {
		return []CheckResult{{
			Name:    "default",
			Status:  StatusHealthy,
			Message: "No readiness checks configured",
		}}
	}

	results := make([]CheckResult, 0, len(checks))
	for name, check := range checks {
		start := time.Now()
		result := check(ctx)
		result.Latency = time.Since(start)
		if result.Name == "" {
			result.Name = name
		}
		results = append(results, result)
	}
	return results
}

// Startup reports whether initialization has completed. It fails until
// MarkStarted is called, keeping liveness and readiness probes quiet while
// the server is still wiring up its backend.
func (c *Checker) Startup(ctx context.Context) CheckResult {
	start := time.Now()

	c.mu.RLock()
	started := c.started
	startTime := c.startTime
	c.mu.RUnlock()

	if !started {
		return CheckResult{
			Name:    "startup",
			Status:  StatusUnhealthy,
			Message: "Service initialization not complete",
			Latency: time.Since(start),
		}
	}

	return CheckResult{
		Name:    "startup",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("Service fully initialized (uptime: %s)", time.Since(startTime).Round(time.Second)),
		Latency: time.Since(start),
	}
}

// IsHealthy reports whether every readiness check passes.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	for _, result := range c.Ready(ctx) {
		if result.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// CheckOf adapts a plain error-returning probe into a CheckFunc. A nil error
// reports healthy; anything else reports unhealthy with the error attached.
func CheckOf(name string, probe func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		if err := probe(ctx); err != nil {
			return CheckResult{
				Name:    name,
				Status:  StatusUnhealthy,
				Error:   err.Error(),
				Latency: time.Since(start),
			}
		}
		return CheckResult{
			Name:    name,
			Status:  StatusHealthy,
			Latency: time.Since(start),
		}
	}
}

// AggregateStatus folds individual check results into one overall status:
// any unhealthy check wins, then degraded, then healthy.
func AggregateStatus(results []CheckResult) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
