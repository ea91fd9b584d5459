package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"outpost-hq/warden/pkg/config"
	"outpost-hq/warden/pkg/store"
)

// Pruner enforces audit retention: entries older than the retention window
// and entries beyond the record cap are removed. With neither limit
// configured, Prune is a no-op.
type Pruner struct {
	store  store.Store
	cfg    config.AuditConfig
	logger *slog.Logger
	cron   *cron.Cron
}

// NewPruner creates a retention pruner.
func NewPruner(s store.Store, cfg config.AuditConfig) *Pruner {
	return &Pruner{
		store:  s,
		cfg:    cfg,
		logger: slog.Default().With("component", "audit.pruner"),
	}
}

// Prune removes entries outside the retention limits and returns how many
// were removed.
func (p *Pruner) Prune() (int, error) {
	if p.cfg.RetentionDays <= 0 && p.cfg.MaxRecords <= 0 {
		return 0, nil
	}

	var cutoff time.Time
	if p.cfg.RetentionDays > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -p.cfg.RetentionDays)
	}

	removed, err := p.store.PruneAudit(cutoff, p.cfg.MaxRecords)
	if err != nil {
		return 0, fmt.Errorf("audit prune failed: %w", err)
	}
	if removed > 0 {
		p.logger.Info("audit entries pruned",
			"removed", removed,
			"retention_days", p.cfg.RetentionDays,
			"max_records", p.cfg.MaxRecords)
	}
	return removed, nil
}

// Start schedules pruning according to the configured cron expression. It
// is a no-op when no schedule is configured.
func (p *Pruner) Start() error {
	if p.cfg.PruneSchedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(p.cfg.PruneSchedule, func() {
		if _, err := p.Prune(); err != nil {
			p.logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.cfg.PruneSchedule, err)
	}

	c.Start()
	p.cron = c
	p.logger.Info("audit pruning scheduled", "schedule", p.cfg.PruneSchedule)
	return nil
}

// Stop cancels the prune schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
		p.cron = nil
	}
}
