// Package health watches the active entry domain and rotates it out of
// service when it stops answering probes.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api/metrics"
	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

const (
	defaultProbeInterval = 60 * time.Second
	defaultProbeTimeout  = 10 * time.Second
)

// MonitorConfig tunes the probe loop.
type MonitorConfig struct {
	// Interval between probes of the active domain. Defaults to 60s.
	Interval time.Duration
	// Timeout for a single probe. Must be shorter than Interval; clamped
	// to half the interval otherwise. Defaults to 10s.
	Timeout time.Duration
	// AgentSecret is sent as X-Agent-Secret so edge health endpoints can
	// distinguish the monitor from anonymous traffic.
	AgentSecret string
	// Scheme overrides the probe URL scheme, e.g. "http" in tests.
	// Defaults to "https".
	Scheme string
}

// Monitor probes the active entry domain on a fixed interval and hands
// failures to the failover controller.
type Monitor struct {
	cfg      MonitorConfig
	domains  ports.DomainRepository
	failover *FailoverController
	client   *http.Client
	log      zerolog.Logger
}

func NewMonitor(cfg MonitorConfig, domains ports.DomainRepository, failover *FailoverController, log zerolog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.Timeout >= cfg.Interval {
		cfg.Timeout = cfg.Interval / 2
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &Monitor{
		cfg:      cfg,
		domains:  domains,
		failover: failover,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log.With().Str("component", "health_monitor").Logger(),
	}
}

// Run blocks, probing the active domain every interval until ctx is
// cancelled. Intended to be launched as a goroutine from main.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.log.Info().
		Dur("interval", m.cfg.Interval).
		Dur("timeout", m.cfg.Timeout).
		Msg("domain health monitor started")

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("domain health monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs a single probe cycle: load the active domain, probe it, and
// trigger failover on failure. Exposed separately so tests and operator
// tooling can force a cycle without waiting for the ticker.
func (m *Monitor) Check(ctx context.Context) {
	active, err := m.domains.FindActive(ctx)
	if errors.Is(err, domain.ErrDomainNotFound) {
		m.log.Error().Msg("no active entry domain configured")
		return
	}
	if err != nil {
		m.log.Error().Err(err).Msg("loading active entry domain")
		return
	}

	if err := m.probe(ctx, active); err != nil {
		m.log.Warn().
			Str("domain", active.DomainName).
			Err(err).
			Msg("active entry domain failed health probe")
		if ferr := m.failover.Trigger(ctx, active); ferr != nil && !errors.Is(ferr, domain.ErrFailoverUnavailable) {
			m.log.Error().Err(ferr).Msg("entry domain failover failed")
		}
		return
	}

	m.log.Debug().Str("domain", active.DomainName).Msg("entry domain healthy")
}

func (m *Monitor) probe(ctx context.Context, d *domain.EntryDomain) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s://%s/health", m.cfg.Scheme, d.DomainName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if m.cfg.AgentSecret != "" {
		req.Header.Set("X-Agent-Secret", m.cfg.AgentSecret)
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		metrics.ProbeDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ProbeDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	metrics.ProbeDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return nil
}
