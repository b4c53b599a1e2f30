package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"minniegallery/internal/queue"
)

const sessionPruneSchedule = "0 15 * * * *"

type TaskPublisher interface {
	Publish(ctx context.Context, task queue.Task) error
}

// SessionPruner deletes expired refresh sessions.
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron          *cron.Cron
	queue         TaskPublisher
	sessions      SessionPruner
	sweepSchedule string
	log           zerolog.Logger
}

func NewScheduler(queue TaskPublisher, sessions SessionPruner, sweepSchedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		queue:         queue,
		sessions:      sessions,
		sweepSchedule: sweepSchedule,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue != nil && s.sweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.sweepSchedule, s.enqueueSweep); err != nil {
			return err
		}
	}
	if s.sessions != nil {
		if _, err := s.cron.AddFunc(sessionPruneSchedule, s.pruneSessions); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.queue.Publish(ctx, queue.Task{Type: queue.TaskSweep}); err != nil {
		s.log.Error().Err(err).Msg("enqueue sweep failed")
		return
	}
	s.log.Info().Msg("orphan sweep enqueued")
}

func (s *Scheduler) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("prune sessions failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("removed", n).Msg("expired sessions pruned")
	}
}
