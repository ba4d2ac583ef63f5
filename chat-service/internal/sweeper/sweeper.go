package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// Expirer transitions lapsed invitations. Implemented by
// service.InvitationService.
type Expirer interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper runs the invitation expiry job on a cron schedule. Runs that
// would overlap a still-running sweep are skipped.
type Sweeper struct {
	cron    *cron.Cron
	expirer Expirer
	timeout time.Duration
	logger  zerolog.Logger
}

func New(expirer Expirer, schedule string) (*Sweeper, error) {
	logger := log.Component("sweeper")
	s := &Sweeper{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		expirer: expirer,
		timeout: 30 * time.Second,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.expirer.Sweep(log.WithLogger(ctx, s.logger))
	if err != nil {
		s.logger.Error().Err(err).Msg("invitation sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("expired", n).Msg("invitations expired")
	}
}

// AddJob schedules a housekeeping task next to the invitation sweep.
func (s *Sweeper) AddJob(name, schedule string, fn func()) error {
	_, err := s.cron.AddFunc(schedule, func() {
		fn()
		s.logger.Debug().Str("job", name).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}
	return nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
