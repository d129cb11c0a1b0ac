// -----------------------------------------------------------------------
// Health Monitor - scheduled capability probes feeding the degradation
// registry
// -----------------------------------------------------------------------

package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/aestimo/internal/common"
	"github.com/ternarybob/aestimo/internal/resilience"
	"github.com/ternarybob/arbor"
)

// probeTimeout bounds a single capability probe.
const probeTimeout = 10 * time.Second

// Probe checks one capability; a nil error marks it available.
type Probe func(ctx context.Context) error

// Monitor runs registered probes on a cron schedule and records the
// outcomes in the degradation registry.
type Monitor struct {
	degradation *resilience.Degradation
	cron        *cron.Cron
	schedule    string
	logger      arbor.ILogger

	mu      sync.Mutex
	probes  map[string]Probe
	running bool
}

// NewMonitor creates the health monitor with the configured probe
// schedule.
func NewMonitor(cfg *common.Config, degradation *resilience.Degradation, logger arbor.ILogger) *Monitor {
	schedule := cfg.Degradation.ProbeSchedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	return &Monitor{
		degradation: degradation,
		cron:        cron.New(),
		schedule:    schedule,
		logger:      logger,
		probes:      make(map[string]Probe),
	}
}

// Register adds a capability probe. Registering an existing name
// replaces its probe.
func (m *Monitor) Register(service string, probe Probe) {
	if probe == nil {
		return
	}
	m.mu.Lock()
	m.probes[service] = probe
	m.mu.Unlock()
}

// Start schedules the probe sweep and runs an immediate one in the
// background so the registry is primed before the first cron tick.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return resilience.New(resilience.CategoryInternal, "monitor_running", "health monitor already started")
	}
	m.running = true
	m.mu.Unlock()

	if _, err := m.cron.AddFunc(m.schedule, func() {
		m.RunProbes(context.Background())
	}); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return resilience.Wrap(err, resilience.CategoryValidation, "probe_schedule_invalid", "cannot schedule health probes")
	}
	m.cron.Start()

	common.SafeGo(m.logger, "health.initialProbe", func() {
		m.RunProbes(context.Background())
	})

	m.logger.Info().
		Str("schedule", m.schedule).
		Int("probes", m.probeCount()).
		Msg("Health monitor started")
	return nil
}

// Stop halts the probe schedule. In-flight probes finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.cron.Stop()
	m.logger.Info().Msg("Health monitor stopped")
}

// RunProbes sweeps every registered probe concurrently and updates the
// degradation registry. Returns the per-service errors for callers that
// want to report them.
func (m *Monitor) RunProbes(ctx context.Context) map[string]error {
	m.mu.Lock()
	probes := make(map[string]Probe, len(m.probes))
	for name, probe := range m.probes {
		probes[name] = probe
	}
	m.mu.Unlock()

	results := make(map[string]error, len(probes))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, probe := range probes {
		name, probe := name, probe
		wg.Add(1)
		common.SafeGo(m.logger, "health.probe."+name, func() {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			err := probe(probeCtx)
			m.degradation.SetAvailable(name, err == nil)

			resultMu.Lock()
			results[name] = err
			resultMu.Unlock()

			if err != nil {
				m.logger.Warn().Err(err).Str("service", name).Msg("Health probe failed")
			}
		})
	}
	wg.Wait()

	m.logger.Debug().
		Int("probes", len(results)).
		Strs("unhealthy", unhealthyNames(results)).
		Msg("Health probe sweep complete")
	return results
}

func (m *Monitor) probeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.probes)
}

func unhealthyNames(results map[string]error) []string {
	var down []string
	for name, err := range results {
		if err != nil {
			down = append(down, name)
		}
	}
	sort.Strings(down)
	return down
}
