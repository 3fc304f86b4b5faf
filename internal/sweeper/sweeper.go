// Package sweeper reclaims expired reservations and evicts expired access
// tokens on a fixed schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sks-store/merchant-api/internal/metrics"
)

// ReservationReclaimer releases every expired reservation and reports which
// ones it freed.
type ReservationReclaimer interface {
	ReleaseExpired(ctx context.Context) ([]string, error)
}

// TokenSweeper evicts expired tokens and reports how many were removed.
type TokenSweeper interface {
	SweepExpired() int
}

const defaultInterval = time.Minute

type Sweeper struct {
	reservations ReservationReclaimer
	tokens       TokenSweeper
	interval     time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics

	cron *cron.Cron
}

type Option func(*Sweeper)

// WithInterval overrides the default one minute sweep interval.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func New(reservations ReservationReclaimer, tokens TokenSweeper, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		reservations: reservations,
		tokens:       tokens,
		interval:     defaultInterval,
		logger:       logger,
		metrics:      m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep loop. A tick that fails is simply retried on the
// next one; overlapping ticks are skipped.
func (s *Sweeper) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) {
	released, err := s.reservations.ReleaseExpired(ctx)
	if err != nil {
		s.logger.Error("reservation sweep failed", zap.Error(err))
	}
	if len(released) > 0 {
		s.logger.Info("reclaimed expired reservations",
			zap.Int("count", len(released)),
			zap.Strings("reservation_ids", released),
		)
	}
	s.metrics.ReservationsSwept(len(released))

	evicted := s.tokens.SweepExpired()
	if evicted > 0 {
		s.logger.Info("evicted expired tokens", zap.Int("count", evicted))
	}
	s.metrics.TokensSwept(evicted)
}
