package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkhall/go-hazard-alerts/internal/config"
	"github.com/mkhall/go-hazard-alerts/internal/models"
	"github.com/mkhall/go-hazard-alerts/internal/repository"
	"github.com/mkhall/go-hazard-alerts/internal/worker"
)

// Sweeper is background hygiene: it deactivates alerts whose expiry has
// passed and purges dead session rows. The read path filters by timestamp at
// query time regardless, so a missed sweep never shows stale alerts.
type Sweeper struct {
	cfg      config.SweepConfig
	alerts   repository.AlertRepository
	sessions repository.SessionRepository
	pool     *worker.Pool[*models.Alert]
	wg       sync.WaitGroup
}

func New(cfg config.SweepConfig, alerts repository.AlertRepository, sessions repository.SessionRepository) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		alerts:   alerts,
		sessions: sessions,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	processor := func(ctx context.Context, alert *models.Alert) error {
		ok, err := s.alerts.DeleteAlert(ctx, alert.ID)
		if err != nil {
			slog.Error("error deactivating expired alert", "id", alert.ID, "error", err)
			return err
		}
		if ok {
			slog.Info("deactivated expired alert", "id", alert.ID, "expires_at", alert.ExpiresAt)
		}
		return nil
	}

	s.pool = worker.NewPool(s.cfg.Workers, s.cfg.BufferSize, processor)
	s.pool.Start(ctx)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single maintenance pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := s.alerts.ListExpiredActive(ctx, now)
	if err != nil {
		slog.Error("error listing expired alerts", "error", err)
	} else {
		for i := range expired {
			if err := s.pool.SubmitCtx(ctx, &expired[i]); err != nil {
				slog.Info("sweep interrupted by shutdown", "remaining", len(expired)-i)
				return
			}
		}
	}

	n, err := s.sessions.DeleteExpiredSessions(ctx, now)
	if err != nil {
		slog.Error("error purging expired sessions", "error", err)
	} else if n > 0 {
		slog.Info("purged expired sessions", "count", n)
	}
}

// Stop waits for the loop to exit and drains the pool. Callers cancel the
// context passed to Start first.
func (s *Sweeper) Stop() {
	s.wg.Wait()
	s.pool.Stop()
}
