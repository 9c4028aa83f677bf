// Package health aggregates availability checks of the store and model providers.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider failure while the store is reachable.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable; no request can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// StoreCheck is the name of the vector store check.
const StoreCheck = "store"

// DefaultTimeout bounds each component check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type provider struct {
	name    string
	checker ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	providers []provider
	timeout   time.Duration
}

// New creates a Service checking store.
func New(store StorePinger) *Service {
	return &Service{store: store, timeout: DefaultTimeout}
}

// WithProvider adds a named provider check. A nil checker is ignored.
func (s *Service) WithProvider(name string, checker ProviderChecker) *Service {
	if checker != nil {
		s.providers = append(s.providers, provider{name: name, checker: checker})
	}
	return s
}

// WithTimeout configures the per-check deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every component check concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.providers)+1)
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	var g errgroup.Group
	g.Go(func() error {
		record(StoreCheck, s.run(ctx, s.store.Ping))
		return nil
	})
	for _, p := range s.providers {
		g.Go(func() error {
			record(p.name, s.run(ctx, p.checker.HealthCheck))
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == StoreCheck {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}
