package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/superproxy/relay-gateway/internal/api/metrics"
	"github.com/superproxy/relay-gateway/internal/core/domain"
	"github.com/superproxy/relay-gateway/internal/core/ports"
)

// Alerter receives critical operator notifications that must not be lost in
// the regular log stream. LogAlerter is the default; deployments can plug in
// pagers or chat hooks.
type Alerter interface {
	Critical(ctx context.Context, msg string)
}

// LogAlerter emits alerts as error-level log entries.
type LogAlerter struct {
	Log zerolog.Logger
}

func (a *LogAlerter) Critical(_ context.Context, msg string) {
	a.Log.Error().Str("alert", "critical").Msg(msg)
}

// FailoverController rotates the active entry domain when it is reported
// unhealthy. Concurrent triggers for the same domain collapse into a single
// attempt via singleflight, so a burst of failed probes produces exactly one
// rotation.
type FailoverController struct {
	domains ports.DomainRepository
	alerter Alerter
	log     zerolog.Logger
	group   singleflight.Group
}

// NewFailoverController builds a controller. A nil alerter falls back to
// LogAlerter on the given logger.
func NewFailoverController(domains ports.DomainRepository, alerter Alerter, log zerolog.Logger) *FailoverController {
	if alerter == nil {
		alerter = &LogAlerter{Log: log}
	}
	return &FailoverController{
		domains: domains,
		alerter: alerter,
		log:     log.With().Str("component", "failover").Logger(),
	}
}

// Trigger attempts to replace the named active domain with the oldest standby.
// The demote and promote steps are ordered compare-and-set updates, so there is
// never an instant with zero active domains: the standby is promoted first and
// the failed domain is demoted after. Returns domain.ErrFailoverUnavailable
// when no standby exists; in that case the degraded domain stays active and a
// critical alert is raised.
func (c *FailoverController) Trigger(ctx context.Context, failed *domain.EntryDomain) error {
	_, err, _ := c.group.Do(failed.ID, func() (interface{}, error) {
		return nil, c.rotate(ctx, failed)
	})
	return err
}

func (c *FailoverController) rotate(ctx context.Context, failed *domain.EntryDomain) error {
	standby, err := c.domains.FindFirstStandby(ctx)
	if errors.Is(err, domain.ErrDomainNotFound) {
		metrics.FailoverAttemptsTotal.WithLabelValues("no_standby").Inc()
		msg := fmt.Sprintf("entry domain %s is unhealthy and no standby domain is available", failed.DomainName)
		c.log.Error().
			Str("domain", failed.DomainName).
			Msg("failover unavailable, keeping degraded domain active")
		c.alerter.Critical(ctx, msg)
		return domain.ErrFailoverUnavailable
	}
	if err != nil {
		return fmt.Errorf("finding standby domain: %w", err)
	}

	if err := c.domains.TransitionStatus(ctx, standby.ID, domain.DomainStandby, domain.DomainActive); err != nil {
		return fmt.Errorf("promoting standby %s: %w", standby.DomainName, err)
	}
	if err := c.domains.TransitionStatus(ctx, failed.ID, domain.DomainActive, domain.DomainBlocked); err != nil {
		// Another writer already moved the failed domain; the promotion stands.
		c.log.Warn().
			Str("domain", failed.DomainName).
			Err(err).
			Msg("failed domain no longer active, skipping demotion")
	}

	metrics.FailoverAttemptsTotal.WithLabelValues("promoted").Inc()
	c.log.Warn().
		Str("blocked", failed.DomainName).
		Str("promoted", standby.DomainName).
		Msg("entry domain failover completed")
	return nil
}
