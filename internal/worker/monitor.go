package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/support-rag/internal/runtime"
)

// DefaultInterval is how often the monitor re-probes backing services
const DefaultInterval = 30 * time.Second

// Probe checks one backing service
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Status is the last observed state of every probe
type Status struct {
	Running   bool              `json:"running"`
	CheckedAt time.Time         `json:"checked_at"`
	Probes    map[string]string `json:"probes"`
	LLM       bool              `json:"llm_available"`
	Embedding bool              `json:"embedding_available"`
}

// Monitor periodically refreshes the AI availability flags held by the
// runtime registry and logs backing services going up or down.
type Monitor struct {
	services *runtime.Services
	probes   []Probe
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	running bool
	status  Status
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// MonitorConfig holds configuration for the monitor.
type MonitorConfig struct {
	Services *runtime.Services
	Probes   []Probe
	Interval time.Duration // Defaults to DefaultInterval
	Timeout  time.Duration // Per round; defaults to 10s
	Logger   *slog.Logger
}

// NewMonitor creates a new availability monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Monitor{
		services: cfg.Services,
		probes:   cfg.Probes,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		status:   Status{Probes: make(map[string]string)},
	}
}

// Start probes once synchronously, then keeps probing in the background
// until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("availability monitor starting", "interval", m.interval, "probes", len(m.probes))
	m.RunOnce(ctx)

	go m.loop(ctx)
}

// Stop halts the background loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.logger.Info("availability monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce probes every service and records the result.
func (m *Monitor) RunOnce(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	next := Status{CheckedAt: time.Now().UTC(), Probes: make(map[string]string, len(m.probes))}
	for _, p := range m.probes {
		if err := p.Check(ctx); err != nil {
			next.Probes[p.Name] = err.Error()
			continue
		}
		next.Probes[p.Name] = "ok"
	}

	if m.services != nil {
		avail := m.services.CheckAvailability(ctx)
		next.LLM = avail.LLM
		next.Embedding = avail.Embedding
	}

	m.mu.Lock()
	prev := m.status
	next.Running = m.running
	m.status = next
	m.mu.Unlock()

	m.logTransitions(prev, next)
	return next
}

// Status returns the last recorded probe results.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.status
	out.Running = m.running
	out.Probes = make(map[string]string, len(m.status.Probes))
	for k, v := range m.status.Probes {
		out.Probes[k] = v
	}
	return out
}

func (m *Monitor) logTransitions(prev, next Status) {
	first := prev.CheckedAt.IsZero()
	for name, state := range next.Probes {
		old, seen := prev.Probes[name]
		if seen && old == state {
			continue
		}
		if state == "ok" {
			if !first {
				m.logger.Info("service recovered", "service", name)
			}
			continue
		}
		m.logger.Warn("service unavailable", "service", name, "error", state)
	}

	if !first && prev.LLM != next.LLM {
		m.logger.Info("llm availability changed", "available", next.LLM)
	}
	if !first && prev.Embedding != next.Embedding {
		m.logger.Info("embedding availability changed", "available", next.Embedding)
	}
}
