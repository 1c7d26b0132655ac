package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the live sweep once a minute.
const DefaultSweepSchedule = "*/1 * * * *"

// LiveSweeper finds Live videos that already ended on the platform side.
type LiveSweeper interface {
	SweepLive(ctx context.Context) (int, error)
}

// Sweeper runs the live sweep on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	target   LiveSweeper
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSweeper creates a sweeper. Five-field schedules are accepted and run
// at second zero.
func NewSweeper(target LiveSweeper, schedule string, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(schedule) == "" {
		schedule = DefaultSweepSchedule
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		cron:     cron.New(cron.WithSeconds()),
		target:   target,
		schedule: normalizeSchedule(schedule),
		timeout:  time.Minute,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Sweeper) Start() error {
	id, err := s.cron.AddFunc(s.schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("schedule live sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("live sweep scheduled", zap.Int("entry_id", int(id)), zap.String("schedule", s.schedule))
	return nil
}

// Stop cancels a running sweep and waits for the scheduler to finish.
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("live sweep stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	start := time.Now()
	n, err := s.target.SweepLive(ctx)
	if err != nil {
		s.logger.Error("live sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("live sweep recorded videos", zap.Int("count", n), zap.Duration("took", time.Since(start)))
	}
}

func normalizeSchedule(expr string) string {
	if len(strings.Fields(expr)) == 5 {
		return "0 " + expr
	}
	return expr
}
