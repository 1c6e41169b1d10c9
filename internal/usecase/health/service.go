package health

import (
	"context"
	"sort"
	"time"

	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
	"github.com/kailas-cloud/ragdex/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional dependency is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the index is not serving.
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

const indexCheck = "index"

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Index   vector.Stats
	Version string
}

// Service coordinates health checks.
type Service struct {
	index    Index
	checkers map[string]Checker
	timeout  time.Duration
}

// New creates a Service for the given index.
func New(index Index) *Service {
	return &Service{index: index, checkers: make(map[string]Checker), timeout: 5 * time.Second}
}

// WithChecker adds a named dependency probe. A nil checker is ignored.
func (s *Service) WithChecker(name string, c Checker) *Service {
	if c != nil {
		s.checkers[name] = c
	}
	return s
}

// WithTimeout bounds each dependency probe.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs health checks against all components. The index decides between
// healthy and unhealthy; other dependencies can only degrade.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checkers)+1)

	status := Healthy
	if s.index.Ready() {
		checks[indexCheck] = CheckOK
	} else {
		checks[indexCheck] = CheckError
		status = Unhealthy
	}

	names := make([]string, 0, len(s.checkers))
	for name := range s.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checkers[name].HealthCheck(cctx)
		cancel()
		if err != nil {
			checks[name] = CheckError
			if status == Healthy {
				status = Degraded
			}
			continue
		}
		checks[name] = CheckOK
	}

	return Report{
		Status:  status,
		Checks:  checks,
		Index:   s.index.Stats(),
		Version: version.Version,
	}
}
