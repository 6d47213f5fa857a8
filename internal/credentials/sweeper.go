package credentials

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/botdeckhq/botdeck/internal/deployment"
)

// ExpiringLister yields credentials due for a proactive refresh.
type ExpiringLister interface {
	ListExpiring(ctx context.Context, window time.Duration) ([]Credential, error)
}

// Sweeper proactively refreshes credentials that are close to expiry so
// inbound traffic rarely hits the 401 path.
type Sweeper struct {
	logger     *slog.Logger
	store      ExpiringLister
	refreshers map[deployment.PlatformType]*Refresher
	schedule   string
	window     time.Duration
	cron       *cron.Cron
}

// NewSweeper creates a Sweeper. refreshers maps each provider to its token
// endpoint; providers without an entry are skipped.
func NewSweeper(log *slog.Logger, store ExpiringLister, refreshers map[deployment.PlatformType]*Refresher, schedule string, window time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		logger:     log.With(slog.String("component", "credential_sweeper")),
		store:      store,
		refreshers: refreshers,
		schedule:   schedule,
		window:     window,
	}
}

// Start schedules the sweep. The first run happens on schedule, not
// immediately.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("credential sweeper started",
		slog.String("schedule", s.schedule),
		slog.Duration("window", s.window),
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	creds, err := s.store.ListExpiring(ctx, s.window)
	if err != nil {
		s.logger.Error("listing expiring credentials failed", slog.String("error", err.Error()))
		return
	}
	for _, cred := range creds {
		refresher, ok := s.refreshers[cred.Provider]
		if !ok {
			continue
		}
		// A concurrent refresh may have pushed the expiry out since the
		// listing query ran.
		if !cred.ExpiresWithin(s.window) {
			continue
		}
		if _, err := refresher.Refresh(ctx, cred); err != nil {
			// An AuthError here means the refresh token itself is dead;
			// the owner has to reconnect the integration.
			s.logger.Warn("scheduled refresh failed",
				slog.String("credential_id", cred.ID),
				slog.String("provider", cred.Provider.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
