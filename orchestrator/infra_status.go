package orchestrator

import "sync"

// InfraStatus tracks the reachability of the gateway's sibling
// infrastructure services (CMS, the RLM inference service, Temporal) as
// observed by the orchestrator itself, separate from the per-backend
// circuit breakers a Chain maintains: those track one named call's
// health, this tracks "should the orchestrator even attempt to use this
// service" at a coarser, sticky granularity.
type InfraStatus struct {
	mu sync.Mutex

	cmsAvailable      bool
	rlmAvailable      bool
	temporalAvailable bool
	failureCount      int
}

// NewInfraStatus returns a status with every service assumed healthy,
// matching the gateway's optimistic startup default.
func NewInfraStatus() *InfraStatus {
	return &InfraStatus{
		cmsAvailable:      true,
		rlmAvailable:      true,
		temporalAvailable: true,
	}
}

// service names accepted by MarkFailure/MarkHealthy.
const (
	ServiceCMS      = "cms"
	ServiceRLM      = "rlm"
	ServiceTemporal = "temporal"
)

// MarkFailure records an observed failure of the named service and flips
// its availability flag off.
func (s *InfraStatus) MarkFailure(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	switch service {
	case ServiceCMS:
		s.cmsAvailable = false
	case ServiceRLM:
		s.rlmAvailable = false
	case ServiceTemporal:
		s.temporalAvailable = false
	}
}

// MarkHealthy records a recovery of the named service.
func (s *InfraStatus) MarkHealthy(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch service {
	case ServiceCMS:
		s.cmsAvailable = true
	case ServiceRLM:
		s.rlmAvailable = true
	case ServiceTemporal:
		s.temporalAvailable = true
	}
}

// CMSAvailable reports whether CMS is currently believed reachable.
func (s *InfraStatus) CMSAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmsAvailable
}

// RLMAvailable reports whether the RLM inference service is currently
// believed reachable.
func (s *InfraStatus) RLMAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rlmAvailable
}

// TemporalAvailable reports whether Temporal is currently believed
// reachable.
func (s *InfraStatus) TemporalAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temporalAvailable
}

// FailureCount returns the cumulative number of MarkFailure calls, for
// diagnostics.
func (s *InfraStatus) FailureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureCount
}
