package agent

import "sync"

// ServiceState is the probe-derived, read-mostly view of one local
// service's availability and catalog. Replaced wholesale on every probe
// cycle (spec.md §4.3 "Ownership").
type ServiceState struct {
	mu        sync.RWMutex
	available bool
	models    []string
	catalog   map[string][]string
}

// SetLLM replaces the availability + model-tag view after an LLM probe.
func (s *ServiceState) SetLLM(available bool, models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
	if available {
		s.models = models
	}
}

// SetRender replaces the availability + catalog view after a RENDER probe.
// A probe that reaches liveness but not /object_info keeps the previous
// catalog untouched (spec.md §4.2).
func (s *ServiceState) SetRender(available bool, catalog map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
	if catalog != nil {
		s.catalog = catalog
	}
}

// Available reports the last probe's availability.
func (s *ServiceState) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// Models returns a copy of the observed model-tag list (LLM only).
func (s *ServiceState) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.models))
	copy(out, s.models)
	return out
}

// Catalog returns a copy of the observed loader catalog (RENDER only).
func (s *ServiceState) Catalog() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.catalog))
	for k, v := range s.catalog {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
