package health

import (
	"context"
	"sort"
	"time"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	probes  map[string]Probe
	timeout time.Duration
}

// NewService constructs a health service. Nil probes are ignored.
func NewService(probes map[string]Probe) *Service {
	kept := make(map[string]Probe, len(probes))
	for name, p := range probes {
		if p != nil {
			kept[name] = p
		}
	}
	return &Service{probes: kept, timeout: 2 * time.Second}
}

// Report is the health payload.
type Report struct {
	OK           bool              `json:"ok"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Status runs every probe. The service is healthy only when all probes pass.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true}
	if s == nil || len(s.probes) == 0 {
		return report
	}
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	report.Dependencies = make(map[string]string, len(names))
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.probes[name](pctx)
		cancel()
		if err != nil {
			report.OK = false
			report.Dependencies[name] = "down"
			continue
		}
		report.Dependencies[name] = "up"
	}
	return report
}
