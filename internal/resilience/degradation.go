package resilience

import (
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
)

// Degradation is the process-wide service availability registry. A request
// may proceed with degradation iff every unavailable service is
// non-critical. Services never registered are assumed available.
type Degradation struct {
	mu        sync.RWMutex
	available map[string]bool
	critical  map[string]bool
	logger    arbor.ILogger
}

// NewDegradation creates the registry with the configured critical set.
func NewDegradation(criticalServices []string, logger arbor.ILogger) *Degradation {
	critical := make(map[string]bool, len(criticalServices))
	for _, name := range criticalServices {
		critical[name] = true
	}
	return &Degradation{
		available: make(map[string]bool),
		critical:  critical,
		logger:    logger,
	}
}

// SetAvailable records a service's availability.
func (d *Degradation) SetAvailable(service string, ok bool) {
	d.mu.Lock()
	prev, seen := d.available[service]
	d.available[service] = ok
	d.mu.Unlock()

	if d.logger != nil && (!seen || prev != ok) {
		d.logger.Info().
			Str("service", service).
			Bool("available", ok).
			Bool("critical", d.IsCritical(service)).
			Msg("Service availability changed")
	}
}

// Available reports whether a service is currently usable.
func (d *Degradation) Available(service string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ok, seen := d.available[service]
	return !seen || ok
}

// IsCritical reports whether a service is in the critical set.
func (d *Degradation) IsCritical(service string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.critical[service]
}

// CanProceed reports whether a request may run, possibly degraded, and the
// sorted list of unavailable services.
func (d *Degradation) CanProceed() (bool, []string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var down []string
	proceed := true
	for service, ok := range d.available {
		if ok {
			continue
		}
		down = append(down, service)
		if d.critical[service] {
			proceed = false
		}
	}
	sort.Strings(down)
	return proceed, down
}

// Snapshot returns a copy of the availability table.
func (d *Degradation) Snapshot() map[string]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]bool, len(d.available))
	for k, v := range d.available {
		out[k] = v
	}
	return out
}
